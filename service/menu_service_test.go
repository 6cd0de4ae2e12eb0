package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"restrobook/pkg/models"
)

type fakeUploader struct {
	names []string
	err   error
}

func (u *fakeUploader) Upload(_ context.Context, filename string, r io.Reader) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	if _, err := io.ReadAll(r); err != nil {
		return "", err
	}
	u.names = append(u.names, filename)
	return "https://img.restro.test/" + filename, nil
}

func TestMenuSeedAndFilters(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	menu := env.svc.Menu()

	// Seeding twice overwrites rather than duplicates.
	n, err := menu.Seed(ctx)
	if err != nil || n != 5 {
		t.Fatalf("seed = %d, %v", n, err)
	}
	all, err := menu.List(ctx, models.MenuFilter{})
	if err != nil || len(all) != 5 {
		t.Fatalf("list = %d, %v", len(all), err)
	}

	cats, err := menu.Categories(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(cats, ",") != "Starters,Main Course,Breads" {
		t.Fatalf("categories = %v", cats)
	}

	mains, _ := menu.List(ctx, models.MenuFilter{Category: "Main Course"})
	if len(mains) != 2 {
		t.Fatalf("main course = %d", len(mains))
	}
	paneer, _ := menu.List(ctx, models.MenuFilter{Search: "paneer"})
	if len(paneer) != 2 {
		t.Fatalf("search paneer = %d", len(paneer))
	}
	none, _ := menu.List(ctx, models.MenuFilter{Search: "sushi"})
	if none == nil || len(none) != 0 {
		t.Fatalf("empty search = %#v", none)
	}
}

func TestMenuCreateWithImage(t *testing.T) {
	up := &fakeUploader{}
	env := newEnvWith(t, testConfig(), Deps{Images: up})
	ctx := context.Background()

	item, err := env.svc.Menu().Create(ctx, models.MenuItem{
		Name:     "Masala Chaas",
		Price:    decimal.NewFromInt(60),
		IsVeg:    true,
		Category: "Drinks",
		InStock:  true,
	}, bytes.NewReader([]byte("\x89PNG")), "chaas.png")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if item.ID == "" || item.Image != "https://img.restro.test/chaas.png" || item.Badge != models.BadgeNone {
		t.Fatalf("item = %+v", item)
	}
	if len(up.names) != 1 {
		t.Fatalf("uploads = %v", up.names)
	}

	// New items can be ordered right away.
	o := env.place(t, "1", "d1", line(item.ID, 2))
	if !o.Total.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("total = %s", o.Total)
	}
}

func TestMenuCreateRejects(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	menu := env.svc.Menu()

	if _, err := menu.Create(ctx, models.MenuItem{Name: "Free lunch", Price: decimal.NewFromInt(-1), Category: "Mains"}, nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative price: %v", err)
	}
	if _, err := menu.Create(ctx, models.MenuItem{Name: "No category", Price: decimal.NewFromInt(10)}, nil, ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing category: %v", err)
	}
	if _, err := menu.Create(ctx, models.MenuItem{Name: "Pic", Price: decimal.NewFromInt(10), Category: "X"}, strings.NewReader("x"), "x.png"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("upload without image host: %v", err)
	}
}

func TestMenuStockAndDelete(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	menu := env.svc.Menu()

	if err := menu.SetInStock(ctx, "s1", false); err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Placement().Place(ctx, PlaceRequest{TableID: "1", DeviceID: "d", Lines: []CartLine{line("s1", 1)}}); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("out of stock item placed: %v", err)
	}
	if err := menu.SetInStock(ctx, "s1", true); err != nil {
		t.Fatal(err)
	}
	env.place(t, "1", "d", line("s1", 1))

	if err := menu.Delete(ctx, "b1"); err != nil {
		t.Fatal(err)
	}
	if err := menu.Delete(ctx, "b1"); !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if err := menu.SetInStock(ctx, "b1", true); !errors.Is(err, ErrMenuItemNotFound) {
		t.Fatalf("stock of deleted item: %v", err)
	}
}

func TestSettingsAndQR(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	menu := env.svc.Menu()

	st, err := menu.GetSettings(ctx)
	if err != nil || st.TotalTables != 10 {
		t.Fatalf("default settings = %+v, %v", st, err)
	}
	if _, err := menu.SetTotalTables(ctx, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero tables: %v", err)
	}
	if _, err := menu.SetTotalTables(ctx, 12); err != nil {
		t.Fatal(err)
	}
	env.place(t, "12", "d", line("b1", 1))

	png, err := menu.TableQR(ctx, 12)
	if err != nil {
		t.Fatalf("qr: %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("qr is not a png")
	}
	if _, err := menu.TableQR(ctx, 13); !errors.Is(err, ErrUnknownTable) {
		t.Fatalf("qr beyond range: %v", err)
	}
}
