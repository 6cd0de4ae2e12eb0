package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"restrobook/pkg/logger"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
)

func TestResolveRoles(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	fresh := env.svc.Session().Resolve(ctx, "7", "dev-a", "")
	if fresh.Role != models.SessionNone || !fresh.CanOrder || fresh.Order != nil {
		t.Fatalf("free table = %+v", fresh)
	}

	o := env.place(t, "7", "dev-a", line("m1", 1))

	host := env.svc.Session().Resolve(ctx, "7", "dev-a", o.ID)
	if host.Role != models.SessionHost || host.OrderID() != o.ID || host.ClearMarker {
		t.Fatalf("host = %+v", host)
	}

	guest := env.svc.Session().Resolve(ctx, "7", "dev-b", "")
	if guest.Role != models.SessionGuest || guest.OrderID() != o.ID || guest.CanOrder {
		t.Fatalf("guest = %+v", guest)
	}

	// A copied marker without the lease does not make a host.
	thief := env.svc.Session().Resolve(ctx, "7", "dev-c", o.ID)
	if thief.Role != models.SessionGuest || !thief.ClearMarker {
		t.Fatalf("marker from another device = %+v", thief)
	}

	// A marker for another table is stale here.
	other := env.svc.Session().Resolve(ctx, "8", "dev-a", o.ID)
	if other.Role != models.SessionNone || !other.ClearMarker || !other.CanOrder {
		t.Fatalf("marker on wrong table = %+v", other)
	}
}

func TestResolveSelfHealsAfterTerminal(t *testing.T) {
	for _, finish := range []string{"served", "cancelled"} {
		t.Run(finish, func(t *testing.T) {
			env := newEnv(t)
			ctx := context.Background()
			o := env.place(t, "3", "dev-a", line("b1", 2))

			if finish == "served" {
				for _, from := range []models.OrderStatus{models.StatusLive, models.StatusPreparing, models.StatusReady} {
					if _, err := env.svc.Lifecycle().Advance(ctx, o.ID, from); err != nil {
						t.Fatalf("advance: %v", err)
					}
				}
			} else if err := env.svc.Lifecycle().Cancel(ctx, o.ID, true); err != nil {
				t.Fatalf("cancel: %v", err)
			}

			sess := env.svc.Session().Resolve(ctx, "3", "dev-a", o.ID)
			if sess.Role != models.SessionNone || !sess.ClearMarker || !sess.CanOrder || sess.Order != nil {
				t.Fatalf("stale marker resolved to %+v", sess)
			}
			// The table is free for a new host.
			next := env.place(t, "3", "dev-b", line("m1", 1))
			if s := env.svc.Session().Resolve(ctx, "3", "dev-b", next.ID); s.Role != models.SessionHost {
				t.Fatalf("new host = %+v", s)
			}
		})
	}
}

func TestResolveDegradesWhenStoreUnreachable(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	o := env.place(t, "5", "dev-a", line("m1", 1))

	sessions := NewSessionService(brokenStore{env.store}, env.cfg, logger.NewNop(), Deps{Metrics: metrics.NewRegistry(), Clock: env.clock.Now})
	sess := sessions.Resolve(ctx, "5", "dev-a", o.ID)
	if sess.Role != models.SessionNone || !sess.Degraded {
		t.Fatalf("unreachable store resolved to %+v", sess)
	}
	if sess.ClearMarker {
		t.Fatalf("marker must survive an outage")
	}
}

func TestResolveKeepsHostPastLeaseExpiry(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	o := env.place(t, "6", "dev-a", line("m1", 1))

	env.clock.Advance(5 * time.Hour)
	host := env.svc.Session().Resolve(ctx, "6", "dev-a", o.ID)
	if host.Role != models.SessionHost || host.ClearMarker {
		t.Fatalf("holder after expiry = %+v", host)
	}
	l, err := env.store.Lease().Get(ctx, "6")
	if err != nil {
		t.Fatal(err)
	}
	if l.Expired(env.clock.Now()) {
		t.Fatalf("lease not refreshed: expires %s", l.ExpiresAt)
	}

	// The mailbox keeps working end to end.
	guest := env.svc.Session().Resolve(ctx, "6", "dev-b", "")
	if guest.Role != models.SessionGuest || guest.CanOrder {
		t.Fatalf("other device = %+v", guest)
	}
	sg, err := env.svc.Mailbox().Suggest(ctx, guest, o.ID, "b1")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.svc.Mailbox().Accept(ctx, host, o.ID, sg.Key()); err != nil {
		t.Fatalf("host accept after expiry: %v", err)
	}

	// Someone else holding the marker still gets nowhere.
	if s := env.svc.Session().Resolve(ctx, "6", "dev-b", o.ID); s.Role != models.SessionGuest || !s.ClearMarker {
		t.Fatalf("borrowed marker after expiry = %+v", s)
	}
}

func TestSecondHostIsBlocked(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()

	devices := []string{"dev-a", "dev-b", "dev-c", "dev-d", "dev-e"}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners = map[string]string{}
	)
	for _, d := range devices {
		wg.Add(1)
		go func(d string) {
			defer wg.Done()
			o, err := env.svc.Placement().Place(ctx, PlaceRequest{TableID: "7", DeviceID: d, Lines: []CartLine{line("m1", 1)}})
			if err != nil {
				if !errors.Is(err, ErrTableOccupied) {
					t.Errorf("device %s: %v", d, err)
				}
				return
			}
			mu.Lock()
			winners[d] = o.ID
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("want one host, got %v", winners)
	}
	hosts := 0
	for _, d := range devices {
		sess := env.svc.Session().Resolve(ctx, "7", d, winners[d])
		switch sess.Role {
		case models.SessionHost:
			hosts++
		case models.SessionGuest:
		default:
			t.Fatalf("device %s resolved to %s", d, sess.Role)
		}
	}
	if hosts != 1 {
		t.Fatalf("want exactly one host, got %d", hosts)
	}

	active, _ := env.store.Order().List(ctx, models.OrderFilter{TableID: "7", Statuses: models.ActiveStatuses})
	if len(active) != 1 {
		t.Fatalf("table 7 has %d active orders", len(active))
	}
}

func TestTakeawayHasNoGuests(t *testing.T) {
	env := newEnv(t)
	ctx := context.Background()
	a := env.place(t, "Takeaway", "dev-a", line("b1", 1))
	b := env.place(t, "Takeaway", "dev-b", line("b1", 1))

	if s := env.svc.Session().Resolve(ctx, "Takeaway", "dev-a", a.ID); s.Role != models.SessionHost || s.OrderID() != a.ID {
		t.Fatalf("takeaway host a = %+v", s)
	}
	if s := env.svc.Session().Resolve(ctx, "Takeaway", "dev-b", b.ID); s.Role != models.SessionHost || s.OrderID() != b.ID {
		t.Fatalf("takeaway host b = %+v", s)
	}
	s := env.svc.Session().Resolve(ctx, "Takeaway", "dev-c", "")
	if s.Role != models.SessionNone || !s.CanOrder {
		t.Fatalf("takeaway newcomer = %+v", s)
	}
	if s := env.svc.Session().Resolve(ctx, "Takeaway", "dev-c", a.ID); s.Role == models.SessionHost {
		t.Fatalf("borrowed takeaway marker made a host")
	}
}

func TestSessionWatchTracksTable(t *testing.T) {
	env := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := env.svc.Session().Watch(ctx, "4", "dev-b", "")
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if s := recv(t, ch); s.Role != models.SessionNone {
		t.Fatalf("initial = %+v", s)
	}

	o := env.place(t, "4", "dev-a", line("m1", 1))
	if s := recv(t, ch); s.Role != models.SessionGuest || s.OrderID() != o.ID {
		t.Fatalf("after placement = %+v", s)
	}

	env.svc.Lifecycle().Cancel(context.Background(), o.ID, true)
	if s := recv(t, ch); s.Role != models.SessionNone || !s.CanOrder {
		t.Fatalf("after cancel = %+v", s)
	}
}
