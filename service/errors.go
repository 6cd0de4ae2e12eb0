package service

import "errors"

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrStatusConflict     = errors.New("someone already updated this order")
	ErrNoTransition       = errors.New("no transition from this status")
	ErrCancelNotConfirmed = errors.New("cancellation must be confirmed")

	ErrTableOccupied = errors.New("table already has an active order")
	ErrUnknownTable  = errors.New("unknown table")
	ErrEmptyCart     = errors.New("cart is empty")
	ErrUnknownItem   = errors.New("unknown menu item")
	ErrOutOfStock    = errors.New("item is out of stock")
	ErrInvalidOrder  = errors.New("invalid order")
	ErrStoreTimeout  = errors.New("store did not answer in time")

	ErrNotHost            = errors.New("only the host may do this")
	ErrNotGuest           = errors.New("only a guest may suggest items")
	ErrOrderNotActive     = errors.New("order is no longer active")
	ErrMailboxFull        = errors.New("suggestion mailbox is full")
	ErrSuggestionNotFound = errors.New("suggestion not found")

	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrUserExists         = errors.New("user already exists")
	ErrMenuItemNotFound   = errors.New("menu item not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNoRecipient        = errors.New("no recipient address")
	ErrNoOrders           = errors.New("no orders to report")
)
