package postgres

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/storage"
)

const menuColumns = `id, name, description, price::text, image, is_veg, category, badge, in_stock, created_at`

type menuRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewMenuRepo(db *pgxpool.Pool, log logger.ILogger) storage.IMenuStorage {
	return &menuRepo{db: db, log: log}
}

func (r *menuRepo) List(ctx context.Context, filter models.MenuFilter) ([]*models.MenuItem, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Category != "" {
		args = append(args, filter.Category)
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.VegOnly {
		where = append(where, "is_veg")
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = append(where, "name ILIKE $"+strconv.Itoa(len(args)))
	}

	query := `SELECT ` + menuColumns + ` FROM menu_items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY position"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list menu", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var items []*models.MenuItem
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			r.log.Error("failed to scan menu item", logger.Error(err))
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *menuRepo) GetByID(ctx context.Context, id string) (*models.MenuItem, error) {
	it, err := scanMenuItem(r.db.QueryRow(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get menu item", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return it, nil
}

func (r *menuRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.MenuItem, error) {
	rows, err := r.db.Query(ctx, `SELECT `+menuColumns+` FROM menu_items WHERE id = ANY($1)`, ids)
	if err != nil {
		r.log.Error("failed to get menu items", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*models.MenuItem, len(ids))
	for rows.Next() {
		it, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		out[it.ID] = it
	}
	return out, rows.Err()
}

func (r *menuRepo) Upsert(ctx context.Context, item *models.MenuItem) (*models.MenuItem, error) {
	id := item.ID
	if id == "" {
		id = uuid.NewString()
	}
	badge := item.Badge
	if badge == "" {
		badge = models.BadgeNone
	}
	query := `
		INSERT INTO menu_items (id, name, description, price, image, is_veg, category, badge, in_stock)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
		    image = EXCLUDED.image, is_veg = EXCLUDED.is_veg, category = EXCLUDED.category,
		    badge = EXCLUDED.badge, in_stock = EXCLUDED.in_stock
		RETURNING ` + menuColumns
	it, err := scanMenuItem(r.db.QueryRow(ctx, query,
		id,
		item.Name,
		item.Description,
		item.Price.String(),
		item.Image,
		item.IsVeg,
		item.Category,
		badge,
		item.InStock,
	))
	if err != nil {
		r.log.Error("failed to upsert menu item", logger.String("name", item.Name), logger.Error(err))
		return nil, err
	}
	return it, nil
}

func (r *menuRepo) SetInStock(ctx context.Context, id string, inStock bool) error {
	res, err := r.db.Exec(ctx, `UPDATE menu_items SET in_stock = $2 WHERE id = $1`, id, inStock)
	if err != nil {
		r.log.Error("failed to toggle stock", logger.String("id", id), logger.Error(err))
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (r *menuRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		r.log.Error("failed to delete menu item", logger.String("id", id), logger.Error(err))
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanMenuItem(row pgx.Row) (*models.MenuItem, error) {
	var (
		it    models.MenuItem
		price string
	)
	err := row.Scan(&it.ID, &it.Name, &it.Description, &price, &it.Image, &it.IsVeg, &it.Category, &it.Badge, &it.InStock, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	if it.Price, err = decimal.NewFromString(price); err != nil {
		return nil, err
	}
	return &it, nil
}
