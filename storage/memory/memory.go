// Package memory is a process-local implementation of storage.IStorage. It backs the
// tests and the single-binary demo mode; it shares the change hub with the Postgres store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"restrobook/pkg/models"
	"restrobook/storage"
)

type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	orders   map[string]*models.Order
	leases   map[string]*models.TableLease
	menu     map[string]*models.MenuItem
	menuSeq  map[string]int
	seq      int
	users    map[string]*models.User
	settings models.Settings
	hub      *storage.Hub
}

func New() *Store {
	return NewWithClock(func() time.Time { return time.Now().UTC() })
}

// NewWithClock lets tests control the timestamps the store assigns.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:      now,
		orders:   make(map[string]*models.Order),
		leases:   make(map[string]*models.TableLease),
		menu:     make(map[string]*models.MenuItem),
		menuSeq:  make(map[string]int),
		users:    make(map[string]*models.User),
		settings: models.Settings{TotalTables: 10, UpdatedAt: now()},
		hub:      storage.NewHub(),
	}
}

func (s *Store) Order() storage.IOrderStorage       { return orderRepo{s} }
func (s *Store) Menu() storage.IMenuStorage         { return menuRepo{s} }
func (s *Store) User() storage.IUserStorage         { return userRepo{s} }
func (s *Store) Settings() storage.ISettingsStorage { return settingsRepo{s} }
func (s *Store) Lease() storage.ILeaseStorage       { return leaseRepo{s} }
func (s *Store) Feed() storage.IChangeFeed          { return s.hub }
func (s *Store) Ping(ctx context.Context) error     { return ctx.Err() }
func (s *Store) Close()                             {}

// Subscribers reports how many change subscriptions are open.
func (s *Store) Subscribers() int { return s.hub.Len() }

func (s *Store) publish(o *models.Order) {
	s.hub.Publish(models.OrderChange{OrderID: o.ID, TableID: o.TableID, Status: o.Status})
}

// activeForTable must be called with mu held.
func (s *Store) activeForTable(tableID string) *models.Order {
	for _, o := range s.orders {
		if o.TableID == tableID && !o.Takeaway && o.Status.IsActive() {
			return o
		}
	}
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, order *models.Order, lease *models.TableLease) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	now := s.now()
	if !order.Takeaway && s.activeForTable(order.TableID) != nil {
		s.mu.Unlock()
		return nil, storage.ErrConflict
	}
	if lease != nil {
		if held, ok := s.leases[order.TableID]; ok && !held.Expired(now) {
			if o, ok := s.orders[held.OrderID]; ok && o.Status.IsActive() {
				s.mu.Unlock()
				return nil, storage.ErrConflict
			}
		}
	}

	o := order.Clone()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	s.orders[o.ID] = o
	if lease != nil {
		l := *lease
		l.OrderID = o.ID
		l.TableID = o.TableID
		s.leases[o.TableID] = &l
	}
	out := o.Clone()
	s.mu.Unlock()

	s.publish(out)
	return out, nil
}

func (r orderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return o.Clone(), nil
}

func (r orderRepo) GetActiveByTable(ctx context.Context, tableID string) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o := r.s.activeForTable(tableID)
	if o == nil {
		return nil, storage.ErrNotFound
	}
	return o.Clone(), nil
}

func (r orderRepo) List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	var out []*models.Order
	for _, o := range r.s.orders {
		if filter.TableID != "" && o.TableID != filter.TableID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, o.Status) {
			continue
		}
		if filter.Since != nil && o.CreatedAt.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && !o.CreatedAt.Before(*filter.Until) {
			continue
		}
		out = append(out, o.Clone())
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.Descending {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (r orderRepo) UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	if !hasStatus(from, o.Status) {
		s.mu.Unlock()
		return nil, storage.ErrConflict
	}
	o.Status = to
	o.UpdatedAt = s.now()
	if to.IsTerminal() {
		if l, ok := s.leases[o.TableID]; ok && l.OrderID == o.ID {
			delete(s.leases, o.TableID)
		}
	}
	out := o.Clone()
	s.mu.Unlock()

	s.publish(out)
	return out, nil
}

func (r orderRepo) AddSuggestion(ctx context.Context, id string, sg models.Suggestion, limit int) (*models.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	if !o.Status.IsActive() {
		s.mu.Unlock()
		return nil, storage.ErrConflict
	}
	if limit > 0 && len(o.Suggestions) >= limit {
		s.mu.Unlock()
		return nil, storage.ErrLimitReached
	}
	o.Suggestions = append(o.Suggestions, sg)
	o.UpdatedAt = s.now()
	out := o.Clone()
	s.mu.Unlock()

	s.publish(out)
	return out, nil
}

func (r orderRepo) RemoveSuggestion(ctx context.Context, id string, key models.SuggestionKey) (*models.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.s
	s.mu.Lock()
	o, ok := s.orders[id]
	if !ok {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	if !o.Status.IsActive() {
		s.mu.Unlock()
		return nil, storage.ErrConflict
	}
	idx := -1
	for i, sg := range o.Suggestions {
		if key.Matches(sg) {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil, storage.ErrNotFound
	}
	removed := o.Suggestions[idx]
	o.Suggestions = append(o.Suggestions[:idx:idx], o.Suggestions[idx+1:]...)
	o.UpdatedAt = s.now()
	out := o.Clone()
	s.mu.Unlock()

	s.publish(out)
	return &removed, nil
}

func (r orderRepo) Truncate(ctx context.Context) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders = make(map[string]*models.Order)
	r.s.leases = make(map[string]*models.TableLease)
	return nil
}

func hasStatus(set []models.OrderStatus, st models.OrderStatus) bool {
	for _, s := range set {
		if s == st {
			return true
		}
	}
	return false
}

type leaseRepo struct{ s *Store }

func (r leaseRepo) Get(ctx context.Context, tableID string) (*models.TableLease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.leases[tableID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *l
	return &c, nil
}

func (r leaseRepo) Refresh(ctx context.Context, tableID, deviceID, orderID string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.leases[tableID]
	if !ok || l.DeviceID != deviceID || l.OrderID != orderID {
		return storage.ErrNotFound
	}
	l.ExpiresAt = expiresAt
	return nil
}

type menuRepo struct{ s *Store }

func (r menuRepo) List(ctx context.Context, filter models.MenuFilter) ([]*models.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	var out []*models.MenuItem
	search := strings.ToLower(filter.Search)
	for _, it := range r.s.menu {
		if filter.Category != "" && it.Category != filter.Category {
			continue
		}
		if filter.VegOnly && !it.IsVeg {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Name), search) {
			continue
		}
		c := *it
		out = append(out, &c)
	}
	seq := r.s.menuSeq
	sort.Slice(out, func(i, j int) bool { return seq[out[i].ID] < seq[out[j].ID] })
	r.s.mu.RUnlock()
	return out, nil
}

func (r menuRepo) GetByID(ctx context.Context, id string) (*models.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	it, ok := r.s.menu[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *it
	return &c, nil
}

func (r menuRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*models.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make(map[string]*models.MenuItem, len(ids))
	for _, id := range ids {
		if it, ok := r.s.menu[id]; ok {
			c := *it
			out[id] = &c
		}
	}
	return out, nil
}

func (r menuRepo) Upsert(ctx context.Context, item *models.MenuItem) (*models.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *item
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if old, ok := r.s.menu[c.ID]; ok {
		c.CreatedAt = old.CreatedAt
	} else {
		c.CreatedAt = r.s.now()
		r.s.seq++
		r.s.menuSeq[c.ID] = r.s.seq
	}
	r.s.menu[c.ID] = &c
	out := c
	return &out, nil
}

func (r menuRepo) SetInStock(ctx context.Context, id string, inStock bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	it, ok := r.s.menu[id]
	if !ok {
		return storage.ErrNotFound
	}
	it.InStock = inStock
	return nil
}

func (r menuRepo) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.menu[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.s.menu, id)
	delete(r.s.menuSeq, id)
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Login() == user.Login() {
			return nil, storage.ErrConflict
		}
	}
	c := *user
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = r.s.now()
	r.s.users[c.ID] = &c
	out := c
	return &out, nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r userRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if (u.Email != nil && *u.Email == login) || (u.Phone != nil && *u.Phone == login) {
			c := *u
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

type settingsRepo struct{ s *Store }

func (r settingsRepo) Get(ctx context.Context) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c := r.s.settings
	return &c, nil
}

func (r settingsRepo) Set(ctx context.Context, settings models.Settings) (*models.Settings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	settings.UpdatedAt = r.s.now()
	r.s.settings = settings
	c := settings
	return &c, nil
}
