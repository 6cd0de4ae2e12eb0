package service

import (
	"context"
	"errors"
	"testing"

	"restrobook/pkg/models"
)

type mailboxFixture struct {
	env   *testEnv
	order *models.Order
	host  models.Session
	guest models.Session
}

func newMailboxFixture(t *testing.T, env *testEnv) *mailboxFixture {
	t.Helper()
	ctx := context.Background()
	o := env.place(t, "2", "dev-host", line("m1", 1))
	f := &mailboxFixture{
		env:   env,
		order: o,
		host:  env.svc.Session().Resolve(ctx, "2", "dev-host", o.ID),
		guest: env.svc.Session().Resolve(ctx, "2", "dev-guest", ""),
	}
	if f.host.Role != models.SessionHost || f.guest.Role != models.SessionGuest {
		t.Fatalf("fixture roles: host=%s guest=%s", f.host.Role, f.guest.Role)
	}
	return f
}

func (f *mailboxFixture) suggestions(t *testing.T) []models.Suggestion {
	t.Helper()
	o, err := f.env.svc.Lifecycle().Get(context.Background(), f.order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	return o.Suggestions
}

func TestGuestSuggestsHostAccepts(t *testing.T) {
	f := newMailboxFixture(t, newEnv(t))
	ctx := context.Background()
	mb := f.env.svc.Mailbox()

	sg, err := mb.Suggest(ctx, f.guest, f.order.ID, "s1")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if sg.Name != "Paneer Tikka" || sg.Price.IntPart() != 280 || sg.SuggestedAt.IsZero() {
		t.Fatalf("suggestion = %+v", sg)
	}
	if got := f.suggestions(t); len(got) != 1 || got[0].ItemID != "s1" {
		t.Fatalf("mailbox = %+v", got)
	}

	accepted, err := mb.Accept(ctx, f.host, f.order.ID, sg.Key())
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.ItemID != "s1" {
		t.Fatalf("accepted %s", accepted.ItemID)
	}
	if got := f.suggestions(t); len(got) != 0 {
		t.Fatalf("mailbox after accept = %+v", got)
	}
	if _, err := mb.Accept(ctx, f.host, f.order.ID, sg.Key()); !errors.Is(err, ErrSuggestionNotFound) {
		t.Fatalf("second accept: %v", err)
	}
}

func TestMailboxRoles(t *testing.T) {
	f := newMailboxFixture(t, newEnv(t))
	ctx := context.Background()
	mb := f.env.svc.Mailbox()

	if _, err := mb.Suggest(ctx, f.host, f.order.ID, "s1"); !errors.Is(err, ErrNotGuest) {
		t.Fatalf("host suggest: %v", err)
	}
	none := models.Session{TableID: "2", Role: models.SessionNone, CanOrder: true}
	if _, err := mb.Suggest(ctx, none, f.order.ID, "s1"); !errors.Is(err, ErrNotGuest) {
		t.Fatalf("stranger suggest: %v", err)
	}

	sg, err := mb.Suggest(ctx, f.guest, f.order.ID, "b1")
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if _, err := mb.Accept(ctx, f.guest, f.order.ID, sg.Key()); !errors.Is(err, ErrNotHost) {
		t.Fatalf("guest accept: %v", err)
	}
	if err := mb.Dismiss(ctx, f.guest, f.order.ID, sg.Key()); !errors.Is(err, ErrNotHost) {
		t.Fatalf("guest dismiss: %v", err)
	}
	if got := f.suggestions(t); len(got) != 1 {
		t.Fatalf("forbidden calls changed the mailbox: %+v", got)
	}
}

func TestSuggestValidatesItem(t *testing.T) {
	f := newMailboxFixture(t, newEnv(t))
	ctx := context.Background()

	if _, err := f.env.svc.Mailbox().Suggest(ctx, f.guest, f.order.ID, "zz9"); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("unknown item: %v", err)
	}
	if err := f.env.svc.Menu().SetInStock(ctx, "s2", false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.env.svc.Mailbox().Suggest(ctx, f.guest, f.order.ID, "s2"); !errors.Is(err, ErrOutOfStock) {
		t.Fatalf("out of stock: %v", err)
	}
	if _, err := f.env.svc.Mailbox().Suggest(ctx, f.guest, "some-other-order", "s1"); !errors.Is(err, ErrOrderNotActive) {
		t.Fatalf("other order: %v", err)
	}
}

func TestDuplicateSuggestionsRemovedOneAtATime(t *testing.T) {
	f := newMailboxFixture(t, newEnv(t))
	ctx := context.Background()
	mb := f.env.svc.Mailbox()

	first, err := mb.Suggest(ctx, f.guest, f.order.ID, "m2")
	if err != nil {
		t.Fatal(err)
	}
	second, err := mb.Suggest(ctx, f.guest, f.order.ID, "m2")
	if err != nil {
		t.Fatal(err)
	}
	if first.Key() == second.Key() {
		t.Fatalf("duplicate suggestions share a key")
	}

	if err := mb.Dismiss(ctx, f.host, f.order.ID, first.Key()); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	got := f.suggestions(t)
	if len(got) != 1 || !second.Key().Matches(got[0]) {
		t.Fatalf("mailbox after one dismiss = %+v", got)
	}
}

func TestMailboxFull(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSuggestions = 2
	f := newMailboxFixture(t, newEnvWith(t, cfg, Deps{}))
	ctx := context.Background()
	mb := f.env.svc.Mailbox()

	for i := 0; i < 2; i++ {
		if _, err := mb.Suggest(ctx, f.guest, f.order.ID, "b1"); err != nil {
			t.Fatalf("suggest %d: %v", i, err)
		}
	}
	if _, err := mb.Suggest(ctx, f.guest, f.order.ID, "b1"); !errors.Is(err, ErrMailboxFull) {
		t.Fatalf("third suggest: %v", err)
	}
}

func TestMailboxClosedAfterCancel(t *testing.T) {
	f := newMailboxFixture(t, newEnv(t))
	ctx := context.Background()
	mb := f.env.svc.Mailbox()

	sg, err := mb.Suggest(ctx, f.guest, f.order.ID, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if err := f.env.svc.Lifecycle().Cancel(ctx, f.order.ID, true); err != nil {
		t.Fatal(err)
	}

	// Sessions resolved before the cancel are stale; the store still refuses.
	if _, err := mb.Suggest(ctx, f.guest, f.order.ID, "s2"); !errors.Is(err, ErrOrderNotActive) {
		t.Fatalf("suggest on cancelled order: %v", err)
	}
	if _, err := mb.Accept(ctx, f.host, f.order.ID, sg.Key()); !errors.Is(err, ErrOrderNotActive) {
		t.Fatalf("accept on cancelled order: %v", err)
	}
}
