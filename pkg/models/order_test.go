package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestStatusNextChain(t *testing.T) {
	cases := []struct {
		from OrderStatus
		want OrderStatus
		ok   bool
	}{
		{StatusLive, StatusPreparing, true},
		{StatusPreparing, StatusReady, true},
		{StatusReady, StatusServed, true},
		{StatusServed, "", false},
		{StatusCancelled, "", false},
		{OrderStatus("bogus"), "", false},
	}
	for _, tc := range cases {
		got, ok := tc.from.Next()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Next(%q) = %q,%v; want %q,%v", tc.from, got, ok, tc.want, tc.ok)
		}
	}
}

// Every reachable status must stay inside the five known values.
func TestStatusClosure(t *testing.T) {
	all := []OrderStatus{StatusLive, StatusPreparing, StatusReady, StatusServed, StatusCancelled}
	for _, from := range all {
		if next, ok := from.Next(); ok && !next.Valid() {
			t.Fatalf("%q steps to invalid %q", from, next)
		}
		for _, to := range all {
			if CanTransition(from, to) && !to.Valid() {
				t.Fatalf("%q -> %q allowed to invalid status", from, to)
			}
		}
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{StatusLive, StatusPreparing, true},
		{StatusLive, StatusCancelled, true},
		{StatusReady, StatusCancelled, true},
		{StatusReady, StatusServed, true},
		{StatusPreparing, StatusLive, false},
		{StatusServed, StatusCancelled, false},
		{StatusCancelled, StatusLive, false},
		{StatusLive, OrderStatus("eaten"), false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%q,%q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestActionsEmptyWhenTerminal(t *testing.T) {
	o := &Order{Status: StatusReady}
	got := o.Actions()
	if len(got) != 2 || got[0] != StatusServed || got[1] != StatusCancelled {
		t.Fatalf("unexpected actions: %v", got)
	}
	for _, st := range []OrderStatus{StatusServed, StatusCancelled} {
		o.Status = st
		if a := o.Actions(); len(a) != 0 {
			t.Fatalf("%q offers actions %v", st, a)
		}
	}
}

func TestComputeTotal(t *testing.T) {
	items := []LineItem{
		{ItemID: "m1", Name: "Dal Makhani", Price: decimal.NewFromInt(240), Quantity: 2},
		{ItemID: "b1", Name: "Butter Naan", Price: decimal.NewFromInt(45), Quantity: 1},
	}
	if got := ComputeTotal(items); !got.Equal(decimal.NewFromInt(525)) {
		t.Fatalf("total = %s, want 525", got)
	}
	if got := ComputeTotal(nil); !got.IsZero() {
		t.Fatalf("empty total = %s", got)
	}
}

func TestSuggestionKeyMatchesFullRecord(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 123000, time.UTC)
	s := Suggestion{ItemID: "s1", Name: "Paneer Tikka", SuggestedAt: at}

	if !s.Key().Matches(s) {
		t.Fatalf("key does not match its own record")
	}
	// Same instant in another zone is still the same record.
	if !(SuggestionKey{ItemID: "s1", SuggestedAt: at.In(time.FixedZone("IST", 19800))}).Matches(s) {
		t.Fatalf("zone must not matter")
	}
	if (SuggestionKey{ItemID: "s1", SuggestedAt: at.Add(time.Microsecond)}).Matches(s) {
		t.Fatalf("different suggestedAt matched")
	}
	if (SuggestionKey{ItemID: "s2", SuggestedAt: at}).Matches(s) {
		t.Fatalf("different item matched")
	}
}

func TestCloneIsDeep(t *testing.T) {
	o := &Order{
		ID:          "o1",
		Items:       []LineItem{{ItemID: "m1", Quantity: 1}},
		Suggestions: []Suggestion{{ItemID: "s1"}},
	}
	c := o.Clone()
	c.Items[0].Quantity = 9
	c.Suggestions[0].ItemID = "x"
	if o.Items[0].Quantity != 1 || o.Suggestions[0].ItemID != "s1" {
		t.Fatalf("clone shares slices with the original")
	}
	if (*Order)(nil).Clone() != nil {
		t.Fatalf("nil clone")
	}
}

func TestLeaseExpired(t *testing.T) {
	now := time.Now()
	l := &TableLease{ExpiresAt: now}
	if !l.Expired(now) {
		t.Fatalf("lease must be expired at its deadline")
	}
	if l.Expired(now.Add(-time.Second)) {
		t.Fatalf("lease expired early")
	}
}
