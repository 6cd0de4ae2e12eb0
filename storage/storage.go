package storage

import (
	"context"
	"errors"
	"time"

	"restrobook/pkg/models"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a guarded write found the document in another state,
	// or a table already holds an active order.
	ErrConflict = errors.New("conflict")
	// ErrLimitReached is returned when a bounded collection is full.
	ErrLimitReached = errors.New("limit reached")
)

type IStorage interface {
	Order() IOrderStorage
	Menu() IMenuStorage
	User() IUserStorage
	Settings() ISettingsStorage
	Lease() ILeaseStorage
	Feed() IChangeFeed
	Ping(ctx context.Context) error
	Close()
}

type IOrderStorage interface {
	// Create inserts a placed order. Dine-in orders also take the table lease in the same
	// write; ErrConflict means the table already has an active order.
	Create(ctx context.Context, order *models.Order, lease *models.TableLease) (*models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetActiveByTable(ctx context.Context, tableID string) (*models.Order, error)
	List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error)
	// UpdateStatus writes to only when the current status is one of from.
	// A terminal target releases the table lease.
	UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (*models.Order, error)
	// AddSuggestion appends to the mailbox of an active order holding fewer than limit records.
	AddSuggestion(ctx context.Context, id string, s models.Suggestion, limit int) (*models.Order, error)
	// RemoveSuggestion removes exactly one record matching key from an active order.
	RemoveSuggestion(ctx context.Context, id string, key models.SuggestionKey) (*models.Suggestion, error)
	Truncate(ctx context.Context) error
}

type IMenuStorage interface {
	List(ctx context.Context, filter models.MenuFilter) ([]*models.MenuItem, error)
	GetByID(ctx context.Context, id string) (*models.MenuItem, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.MenuItem, error)
	Upsert(ctx context.Context, item *models.MenuItem) (*models.MenuItem, error)
	SetInStock(ctx context.Context, id string, inStock bool) error
	Delete(ctx context.Context, id string) error
}

type IUserStorage interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByLogin(ctx context.Context, login string) (*models.User, error)
}

type ISettingsStorage interface {
	Get(ctx context.Context) (*models.Settings, error)
	Set(ctx context.Context, settings models.Settings) (*models.Settings, error)
}

type ILeaseStorage interface {
	Get(ctx context.Context, tableID string) (*models.TableLease, error)
	// Refresh pushes the expiry of a lease held by deviceID for orderID.
	Refresh(ctx context.Context, tableID, deviceID, orderID string, expiresAt time.Time) error
}

// ChangeFilter narrows a subscription; empty fields match everything.
type ChangeFilter struct {
	TableID string
	OrderID string
}

func (f ChangeFilter) Match(c models.OrderChange) bool {
	if f.TableID != "" && f.TableID != c.TableID {
		return false
	}
	if f.OrderID != "" && f.OrderID != c.OrderID {
		return false
	}
	return true
}

type IChangeFeed interface {
	// Subscribe delivers a hint after every write matching filter until ctx is done.
	// Hints coalesce: a subscriber must re-read state on each receive.
	Subscribe(ctx context.Context, filter ChangeFilter) (<-chan models.OrderChange, error)
}
