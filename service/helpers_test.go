package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
	"restrobook/storage"
	"restrobook/storage/memory"
)

// testClock ticks one millisecond per reading so suggestion timestamps stay distinct.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 2, 19, 30, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testConfig() config.Config {
	return config.Config{
		ServiceName:       "restrobook-test",
		PublicURL:         "http://localhost:3000",
		JWTSecret:         "test-secret",
		JWTTTL:            time.Hour,
		OrderPlaceTimeout: 2 * time.Second,
		LeaseTTL:          time.Hour,
		MaxSuggestions:    50,
		TakeawayTableID:   "Takeaway",
	}
}

type testEnv struct {
	svc   IServiceManager
	store *memory.Store
	clock *testClock
	cfg   config.Config
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	return newEnvWith(t, testConfig(), Deps{})
}

func newEnvWith(t *testing.T, cfg config.Config, deps Deps) *testEnv {
	t.Helper()
	clock := newTestClock()
	store := memory.NewWithClock(clock.Now)
	deps.Clock = clock.Now
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	env := &testEnv{
		svc:   New(store, cfg, logger.NewNop(), deps),
		store: store,
		clock: clock,
		cfg:   cfg,
	}
	if _, err := env.svc.Menu().Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return env
}

// place puts an order for table from device with the given item quantities.
func (e *testEnv) place(t *testing.T, table, device string, lines ...CartLine) *models.Order {
	t.Helper()
	o, err := e.svc.Placement().Place(context.Background(), PlaceRequest{TableID: table, DeviceID: device, Lines: lines})
	if err != nil {
		t.Fatalf("place on table %s: %v", table, err)
	}
	return o
}

func line(id string, q int) CartLine { return CartLine{ItemID: id, Quantity: q} }

var errUnreachable = errors.New("dial tcp: connection refused")

// brokenOrders fails every read, as an unreachable store would.
type brokenOrders struct{ storage.IOrderStorage }

func (brokenOrders) GetByID(context.Context, string) (*models.Order, error) {
	return nil, errUnreachable
}

func (brokenOrders) GetActiveByTable(context.Context, string) (*models.Order, error) {
	return nil, errUnreachable
}

type brokenStore struct{ *memory.Store }

func (s brokenStore) Order() storage.IOrderStorage { return brokenOrders{s.Store.Order()} }

// stallingMenu never answers before the caller gives up.
type stallingMenu struct{ storage.IMenuStorage }

func (stallingMenu) GetByIDs(ctx context.Context, _ []string) (map[string]*models.MenuItem, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type stallingStore struct{ *memory.Store }

func (s stallingStore) Menu() storage.IMenuStorage { return stallingMenu{s.Store.Menu()} }

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("stream closed")
		}
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for stream")
	}
	var zero T
	return zero
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
