package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSchemaVersion is written on every order document.
const OrderSchemaVersion = 1

type OrderStatus string

const (
	StatusLive      OrderStatus = "live"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusServed    OrderStatus = "served"
	StatusCancelled OrderStatus = "cancelled"
)

// ActiveStatuses is the set an order must be in to occupy its table.
var ActiveStatuses = []OrderStatus{StatusLive, StatusPreparing, StatusReady}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusLive, StatusPreparing, StatusReady, StatusServed, StatusCancelled:
		return true
	}
	return false
}

func (s OrderStatus) IsActive() bool {
	return s == StatusLive || s == StatusPreparing || s == StatusReady
}

func (s OrderStatus) IsTerminal() bool {
	return s == StatusServed || s == StatusCancelled
}

// Next returns the successor on the forward chain live -> preparing -> ready -> served.
func (s OrderStatus) Next() (OrderStatus, bool) {
	switch s {
	case StatusLive:
		return StatusPreparing, true
	case StatusPreparing:
		return StatusReady, true
	case StatusReady:
		return StatusServed, true
	}
	return "", false
}

// CanTransition reports whether from -> to is a legal single write.
// Forward jumps are allowed by the data model; the controllers only ever step once.
func CanTransition(from, to OrderStatus) bool {
	if !from.IsActive() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return to.Valid() && to.step() > from.step()
}

func (s OrderStatus) step() int {
	switch s {
	case StatusLive:
		return 0
	case StatusPreparing:
		return 1
	case StatusReady:
		return 2
	case StatusServed:
		return 3
	}
	return -1
}

type LineItem struct {
	ItemID   string          `json:"itemId" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" validate:"gt=0"`
}

func (l LineItem) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Suggestion struct {
	ItemID      string          `json:"itemId" validate:"required"`
	Name        string          `json:"name" validate:"required"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	IsVeg       bool            `json:"isVeg"`
	SuggestedAt time.Time       `json:"suggestedAt" validate:"required"`
}

// SuggestionKey identifies one mailbox record. Two guests proposing the same dish
// produce two keys because their SuggestedAt differs.
type SuggestionKey struct {
	ItemID      string    `json:"itemId" validate:"required"`
	SuggestedAt time.Time `json:"suggestedAt" validate:"required"`
}

func (s Suggestion) Key() SuggestionKey {
	return SuggestionKey{ItemID: s.ItemID, SuggestedAt: s.SuggestedAt}
}

func (k SuggestionKey) Matches(s Suggestion) bool {
	return k.ItemID == s.ItemID && k.SuggestedAt.Equal(s.SuggestedAt)
}

type Order struct {
	ID            string          `json:"id"`
	TableID       string          `json:"tableId" validate:"required,max=32"`
	Items         []LineItem      `json:"items" validate:"required,min=1,dive"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status" validate:"required,oneof=live preparing ready served cancelled"`
	Instructions  string          `json:"instructions,omitempty" validate:"max=500"`
	Suggestions   []Suggestion    `json:"suggestions" validate:"dive"`
	HostDeviceID  string          `json:"-"`
	// Takeaway orders never occupy a table and are never shared with guests.
	Takeaway      bool            `json:"takeaway"`
	SchemaVersion int             `json:"schemaVersion"`
	CreatedAt     time.Time       `json:"timestamp"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Actions lists what a staff member may do with the order right now.
func (o *Order) Actions() []OrderStatus {
	next, ok := o.Status.Next()
	if !ok {
		return nil
	}
	return []OrderStatus{next, StatusCancelled}
}

// Clone returns a deep copy; stores hand these out so callers cannot mutate shared state.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]LineItem, len(o.Items))
	copy(c.Items, o.Items)
	c.Suggestions = make([]Suggestion, len(o.Suggestions))
	copy(c.Suggestions, o.Suggestions)
	return &c
}

// ComputeTotal sums price x quantity over the line items.
func ComputeTotal(items []LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// OrderChange is what the change feed carries: enough to route, never the document itself.
type OrderChange struct {
	OrderID string      `json:"id"`
	TableID string      `json:"table_id"`
	Status  OrderStatus `json:"status"`
}

type OrderFilter struct {
	TableID    string
	Statuses   []OrderStatus
	Since      *time.Time
	Until      *time.Time
	Descending bool
}
