package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/pkg/qr"
	"restrobook/storage"
)

type MenuService interface {
	List(ctx context.Context, filter models.MenuFilter) ([]*models.MenuItem, error)
	Categories(ctx context.Context) ([]string, error)
	// Create stores a new item; a non-nil image is uploaded first and replaces item.Image.
	Create(ctx context.Context, item models.MenuItem, image io.Reader, filename string) (*models.MenuItem, error)
	Delete(ctx context.Context, id string) error
	SetInStock(ctx context.Context, id string, inStock bool) error
	Seed(ctx context.Context) (int, error)
	UploadImage(ctx context.Context, filename string, r io.Reader) (string, error)

	GetSettings(ctx context.Context) (*models.Settings, error)
	SetTotalTables(ctx context.Context, n int) (*models.Settings, error)
	TableQR(ctx context.Context, table int) ([]byte, error)
}

type menuService struct {
	menu      storage.IMenuStorage
	settings  storage.ISettingsStorage
	images    ImageUploader
	log       logger.ILogger
	publicURL string
}

func NewMenuService(stg storage.IStorage, cfg config.Config, log logger.ILogger, images ImageUploader) MenuService {
	return &menuService{
		menu:      stg.Menu(),
		settings:  stg.Settings(),
		images:    images,
		log:       log,
		publicURL: cfg.PublicURL,
	}
}

func (s *menuService) List(ctx context.Context, filter models.MenuFilter) ([]*models.MenuItem, error) {
	items, err := s.menu.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	if items == nil {
		items = []*models.MenuItem{}
	}
	return items, nil
}

// Categories lists category names in the order they first appear on the menu.
func (s *menuService) Categories(ctx context.Context) ([]string, error) {
	items, err := s.List(ctx, models.MenuFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := []string{}
	for _, it := range items {
		if !seen[it.Category] {
			seen[it.Category] = true
			out = append(out, it.Category)
		}
	}
	return out, nil
}

func (s *menuService) Create(ctx context.Context, item models.MenuItem, image io.Reader, filename string) (*models.MenuItem, error) {
	if image != nil {
		url, err := s.UploadImage(ctx, filename, image)
		if err != nil {
			return nil, err
		}
		item.Image = url
	}
	if item.Price.IsNegative() {
		return nil, fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	if err := validate.Struct(item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if item.Badge == "" {
		item.Badge = models.BadgeNone
	}

	created, err := s.menu.Upsert(ctx, &item)
	if err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}
	s.log.Info("menu item saved", logger.String("id", created.ID), logger.String("name", created.Name))
	return created, nil
}

func (s *menuService) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	if s.images == nil {
		return "", fmt.Errorf("%w: image upload is not configured", ErrInvalidInput)
	}
	url, err := s.images.Upload(ctx, filename, r)
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	return url, nil
}

func (s *menuService) Delete(ctx context.Context, id string) error {
	if err := s.menu.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("delete menu item: %w", err)
	}
	return nil
}

func (s *menuService) SetInStock(ctx context.Context, id string, inStock bool) error {
	if err := s.menu.SetInStock(ctx, id, inStock); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrMenuItemNotFound
		}
		return fmt.Errorf("toggle stock: %w", err)
	}
	return nil
}

// Seed writes the demo menu. Existing items with the same ids are overwritten.
func (s *menuService) Seed(ctx context.Context) (int, error) {
	for i, it := range demoMenu() {
		item := it
		if _, err := s.menu.Upsert(ctx, &item); err != nil {
			return i, fmt.Errorf("seed %s: %w", it.ID, err)
		}
	}
	n := len(demoMenu())
	s.log.Info("demo menu seeded", logger.Int("items", n))
	return n, nil
}

func (s *menuService) GetSettings(ctx context.Context) (*models.Settings, error) {
	st, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return st, nil
}

func (s *menuService) SetTotalTables(ctx context.Context, n int) (*models.Settings, error) {
	st := models.Settings{TotalTables: n}
	if err := validate.Struct(st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	out, err := s.settings.Set(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("save settings: %w", err)
	}
	return out, nil
}

func (s *menuService) TableQR(ctx context.Context, table int) ([]byte, error) {
	st, err := s.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if table < 1 || table > st.TotalTables {
		return nil, ErrUnknownTable
	}
	return qr.TablePNG(s.publicURL, table)
}

func demoMenu() []models.MenuItem {
	const img = "https://images.unsplash.com/photo-"
	return []models.MenuItem{
		{ID: "s1", Name: "Paneer Tikka", Description: "Cottage cheese marinated in yogurt and spices, roasted in tandoor.",
			Price: decimal.NewFromInt(280), Image: img + "1599487405256-11f845014bd7", IsVeg: true, Category: "Starters", Badge: models.BadgeBestseller, InStock: true},
		{ID: "s2", Name: "Dahi Ke Kebab", Description: "Melt in mouth kebabs made with hung curd and spices.",
			Price: decimal.NewFromInt(240), Image: img + "1601344445837-d2c3df4492bf", IsVeg: true, Category: "Starters", Badge: models.BadgeNone, InStock: true},
		{ID: "m1", Name: "Dal Makhani", Description: "Black lentils cooked overnight with butter and cream.",
			Price: decimal.NewFromInt(240), Image: img + "1585937421612-70a008356fbe", IsVeg: true, Category: "Main Course", Badge: models.BadgeChefSpecial, InStock: true},
		{ID: "m2", Name: "Paneer Butter Masala", Description: "Cubes of cottage cheese cooked in a rich tomato gravy.",
			Price: decimal.NewFromInt(290), Image: img + "1631452180519-c014fe946bc0", IsVeg: true, Category: "Main Course", Badge: models.BadgeNone, InStock: true},
		{ID: "b1", Name: "Butter Naan", Description: "Soft indian bread topped with butter.",
			Price: decimal.NewFromInt(45), Image: img + "1626245009115-f55ee0eeef03", IsVeg: true, Category: "Breads", Badge: models.BadgeNone, InStock: true},
	}
}
