package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"restrobook/pkg/logger"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
	"restrobook/storage"
)

type LifecycleService interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	// Advance moves the order one step forward from the status the caller last saw.
	Advance(ctx context.Context, id string, from models.OrderStatus) (models.OrderStatus, error)
	MarkServed(ctx context.Context, id string) error
	Cancel(ctx context.Context, id string, confirmed bool) error
	KitchenBoard(ctx context.Context) ([]TableTickets, error)
	StaffBoard(ctx context.Context) (*StaffBoard, error)
	Watch(ctx context.Context, id string) (<-chan *models.Order, error)
	WatchKitchen(ctx context.Context) (<-chan []TableTickets, error)
}

// Ticket is one active order on the kitchen board with the single action it offers.
type Ticket struct {
	Order *models.Order      `json:"order"`
	Next  models.OrderStatus `json:"next"`
}

type TableTickets struct {
	TableID string   `json:"tableId"`
	Tickets []Ticket `json:"tickets"`
}

type StaffBoard struct {
	Orders       []*models.Order `json:"orders"`
	TotalOrders  int             `json:"totalOrders"`
	ActiveOrders int             `json:"activeOrders"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type lifecycleService struct {
	orders  storage.IOrderStorage
	feed    storage.IChangeFeed
	log     logger.ILogger
	metrics *metrics.Registry
}

func NewLifecycleService(stg storage.IStorage, log logger.ILogger, m *metrics.Registry) LifecycleService {
	return &lifecycleService{
		orders:  stg.Order(),
		feed:    stg.Feed(),
		log:     log,
		metrics: m,
	}
}

func (s *lifecycleService) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *lifecycleService) Advance(ctx context.Context, id string, from models.OrderStatus) (models.OrderStatus, error) {
	next, ok := from.Next()
	if !ok {
		return "", ErrNoTransition
	}

	_, err := s.orders.UpdateStatus(ctx, id, []models.OrderStatus{from}, next)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		return "", ErrOrderNotFound
	case errors.Is(err, storage.ErrConflict):
		s.metrics.StatusConflicts.Inc()
		s.log.Info("stale status update", logger.String("order", id), logger.String("from", string(from)))
		return "", ErrStatusConflict
	default:
		return "", fmt.Errorf("advance order: %w", err)
	}

	s.metrics.Transitions.WithLabelValues(string(next)).Inc()
	s.log.Info("order advanced", logger.String("order", id), logger.String("from", string(from)), logger.String("to", string(next)))
	return next, nil
}

func (s *lifecycleService) MarkServed(ctx context.Context, id string) error {
	_, err := s.Advance(ctx, id, models.StatusReady)
	return err
}

func (s *lifecycleService) Cancel(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrCancelNotConfirmed
	}

	_, err := s.orders.UpdateStatus(ctx, id, models.ActiveStatuses, models.StatusCancelled)
	switch {
	case err == nil:
		s.metrics.Transitions.WithLabelValues(string(models.StatusCancelled)).Inc()
		s.log.Info("order cancelled", logger.String("order", id))
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrOrderNotFound
	case !errors.Is(err, storage.ErrConflict):
		return fmt.Errorf("cancel order: %w", err)
	}

	// The order already left the active set.
	o, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	switch o.Status {
	case models.StatusCancelled:
		return nil
	case models.StatusServed:
		return ErrNoTransition
	}
	return ErrStatusConflict
}

func (s *lifecycleService) KitchenBoard(ctx context.Context) ([]TableTickets, error) {
	orders, err := s.orders.List(ctx, models.OrderFilter{Statuses: models.ActiveStatuses})
	if err != nil {
		return nil, fmt.Errorf("kitchen board: %w", err)
	}

	board := []TableTickets{}
	index := make(map[string]int)
	for _, o := range orders {
		next, _ := o.Status.Next()
		i, ok := index[o.TableID]
		if !ok {
			i = len(board)
			index[o.TableID] = i
			board = append(board, TableTickets{TableID: o.TableID})
		}
		board[i].Tickets = append(board[i].Tickets, Ticket{Order: o, Next: next})
	}
	return board, nil
}

func (s *lifecycleService) StaffBoard(ctx context.Context) (*StaffBoard, error) {
	orders, err := s.orders.List(ctx, models.OrderFilter{Descending: true})
	if err != nil {
		return nil, fmt.Errorf("staff board: %w", err)
	}

	b := &StaffBoard{Orders: orders, TotalOrders: len(orders), Revenue: decimal.Zero}
	if b.Orders == nil {
		b.Orders = []*models.Order{}
	}
	for _, o := range orders {
		if o.Status.IsActive() {
			b.ActiveOrders++
		}
		if o.Status != models.StatusCancelled {
			b.Revenue = b.Revenue.Add(o.Total)
		}
	}
	return b, nil
}

func (s *lifecycleService) Watch(ctx context.Context, id string) (<-chan *models.Order, error) {
	return watch(ctx, s.feed, storage.ChangeFilter{OrderID: id}, func(ctx context.Context) (*models.Order, error) {
		return s.Get(ctx, id)
	}, s.log)
}

func (s *lifecycleService) WatchKitchen(ctx context.Context) (<-chan []TableTickets, error) {
	return watch(ctx, s.feed, storage.ChangeFilter{}, s.KitchenBoard, s.log)
}
