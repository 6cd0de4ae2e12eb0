package models

import "time"

// TableLease records which device owns the cart of a table for its active order.
type TableLease struct {
	TableID   string    `json:"table_id"`
	DeviceID  string    `json:"device_id"`
	OrderID   string    `json:"order_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (l *TableLease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

type SessionRole string

const (
	SessionNone  SessionRole = "none"
	SessionHost  SessionRole = "host"
	SessionGuest SessionRole = "guest"
)

// Session is the resolved view of one device at one table.
type Session struct {
	TableID  string      `json:"tableId"`
	DeviceID string      `json:"-"`
	Role     SessionRole `json:"role"`
	Order    *Order      `json:"order,omitempty"`
	// CanOrder is true when the device may build a cart and place the first order.
	CanOrder bool `json:"canOrder"`
	// ClearMarker tells the device to drop its local order marker.
	ClearMarker bool `json:"clearMarker"`
	// Degraded is set when the store could not be reached during reconciliation.
	Degraded bool `json:"degraded"`
}

func (s Session) OrderID() string {
	if s.Order == nil {
		return ""
	}
	return s.Order.ID
}
