package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
	"restrobook/storage"
)

// MailboxService lets guests propose items to the host of the same table.
// Callers pass the session resolved for the acting device.
type MailboxService interface {
	Suggest(ctx context.Context, sess models.Session, orderID, itemID string) (*models.Suggestion, error)
	// Accept removes the record and hands it back for the host's next cart.
	Accept(ctx context.Context, sess models.Session, orderID string, key models.SuggestionKey) (*models.Suggestion, error)
	Dismiss(ctx context.Context, sess models.Session, orderID string, key models.SuggestionKey) error
}

type mailboxService struct {
	orders  storage.IOrderStorage
	menu    storage.IMenuStorage
	log     logger.ILogger
	metrics *metrics.Registry
	now     func() time.Time
	limit   int
}

func NewMailboxService(stg storage.IStorage, cfg config.Config, log logger.ILogger, deps Deps) MailboxService {
	return &mailboxService{
		orders:  stg.Order(),
		menu:    stg.Menu(),
		log:     log,
		metrics: deps.Metrics,
		now:     deps.Clock,
		limit:   cfg.MaxSuggestions,
	}
}

func (s *mailboxService) Suggest(ctx context.Context, sess models.Session, orderID, itemID string) (*models.Suggestion, error) {
	if sess.Role != models.SessionGuest {
		return nil, ErrNotGuest
	}
	if sess.OrderID() != orderID {
		return nil, ErrOrderNotActive
	}

	item, err := s.menu.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownItem
		}
		return nil, fmt.Errorf("suggest: %w", err)
	}
	if !item.InStock {
		return nil, ErrOutOfStock
	}

	sg := models.Suggestion{
		ItemID:      item.ID,
		Name:        item.Name,
		Price:       item.Price,
		Image:       item.Image,
		IsVeg:       item.IsVeg,
		SuggestedAt: s.now().UTC(),
	}
	if err := validate.Struct(sg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	_, err = s.orders.AddSuggestion(ctx, orderID, sg, s.limit)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrOrderNotFound
	case errors.Is(err, storage.ErrConflict):
		return nil, ErrOrderNotActive
	case errors.Is(err, storage.ErrLimitReached):
		return nil, ErrMailboxFull
	default:
		return nil, fmt.Errorf("suggest: %w", err)
	}

	s.metrics.Suggestions.WithLabelValues("suggest").Inc()
	s.log.Info("item suggested", logger.String("order", orderID), logger.String("item", item.ID))
	return &sg, nil
}

func (s *mailboxService) Accept(ctx context.Context, sess models.Session, orderID string, key models.SuggestionKey) (*models.Suggestion, error) {
	sg, err := s.remove(ctx, sess, orderID, key)
	if err != nil {
		return nil, err
	}
	s.metrics.Suggestions.WithLabelValues("accept").Inc()
	return sg, nil
}

func (s *mailboxService) Dismiss(ctx context.Context, sess models.Session, orderID string, key models.SuggestionKey) error {
	if _, err := s.remove(ctx, sess, orderID, key); err != nil {
		return err
	}
	s.metrics.Suggestions.WithLabelValues("dismiss").Inc()
	return nil
}

func (s *mailboxService) remove(ctx context.Context, sess models.Session, orderID string, key models.SuggestionKey) (*models.Suggestion, error) {
	if sess.Role != models.SessionHost || sess.OrderID() != orderID {
		return nil, ErrNotHost
	}
	if err := validate.Struct(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	sg, err := s.orders.RemoveSuggestion(ctx, orderID, key)
	switch {
	case err == nil:
		return sg, nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrSuggestionNotFound
	case errors.Is(err, storage.ErrConflict):
		return nil, ErrOrderNotActive
	}
	return nil, fmt.Errorf("remove suggestion: %w", err)
}
