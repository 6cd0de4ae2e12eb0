package service

import (
	"context"
	"errors"
	"time"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
	"restrobook/storage"
)

type SessionService interface {
	// Resolve decides whether deviceID is host, guest or neither at tableID. marker is the
	// order id the device remembers placing for this table, or empty.
	Resolve(ctx context.Context, tableID, deviceID, marker string) models.Session
	// Watch re-resolves after every change to the table's orders.
	Watch(ctx context.Context, tableID, deviceID, marker string) (<-chan models.Session, error)
	IsTakeaway(tableID string) bool
}

type sessionService struct {
	orders   storage.IOrderStorage
	leases   storage.ILeaseStorage
	feed     storage.IChangeFeed
	log      logger.ILogger
	metrics  *metrics.Registry
	now      func() time.Time
	leaseTTL time.Duration
	takeaway string
}

func NewSessionService(stg storage.IStorage, cfg config.Config, log logger.ILogger, deps Deps) SessionService {
	return &sessionService{
		orders:   stg.Order(),
		leases:   stg.Lease(),
		feed:     stg.Feed(),
		log:      log,
		metrics:  deps.Metrics,
		now:      deps.Clock,
		leaseTTL: cfg.LeaseTTL,
		takeaway: cfg.TakeawayTableID,
	}
}

func (s *sessionService) IsTakeaway(tableID string) bool {
	return tableID == s.takeaway
}

func (s *sessionService) Resolve(ctx context.Context, tableID, deviceID, marker string) models.Session {
	sess := s.resolve(ctx, tableID, deviceID, marker)
	s.metrics.SessionsResolved.WithLabelValues(string(sess.Role)).Inc()
	return sess
}

func (s *sessionService) resolve(ctx context.Context, tableID, deviceID, marker string) models.Session {
	sess := models.Session{TableID: tableID, DeviceID: deviceID, Role: models.SessionNone}

	if marker != "" {
		host, err := s.confirmHost(ctx, tableID, deviceID, marker)
		if err != nil {
			return s.degraded(sess, err)
		}
		if host != nil {
			sess.Role = models.SessionHost
			sess.Order = host
			return sess
		}
		sess.ClearMarker = true
	}

	if s.IsTakeaway(tableID) {
		sess.CanOrder = true
		return sess
	}

	active, err := s.orders.GetActiveByTable(ctx, tableID)
	switch {
	case err == nil:
		sess.Role = models.SessionGuest
		sess.Order = active
	case errors.Is(err, storage.ErrNotFound):
		sess.CanOrder = true
	default:
		return s.degraded(sess, err)
	}
	return sess
}

// confirmHost returns the order the device hosts, nil when the marker is stale,
// or an error when the store could not answer.
func (s *sessionService) confirmHost(ctx context.Context, tableID, deviceID, marker string) (*models.Order, error) {
	o, err := s.orders.GetByID(ctx, marker)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if o.TableID != tableID || !o.Status.IsActive() || deviceID == "" {
		return nil, nil
	}

	if o.Takeaway {
		if o.HostDeviceID != deviceID {
			return nil, nil
		}
		return o, nil
	}

	lease, err := s.leases.Get(ctx, tableID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	// An expired lease still belongs to its holder while the order is active; the
	// table stays blocked by that order, so demoting the holder would orphan it.
	now := s.now()
	if lease.OrderID != o.ID || lease.DeviceID != deviceID {
		return nil, nil
	}

	err = s.leases.Refresh(ctx, tableID, deviceID, o.ID, now.Add(s.leaseTTL))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warning("failed to refresh table lease", logger.String("table", tableID), logger.Error(err))
	}
	return o, nil
}

// degraded fails toward a fresh browsing state. The marker is kept so the device can
// recover host status once the store answers again.
func (s *sessionService) degraded(sess models.Session, err error) models.Session {
	s.log.Warning("session reconciliation degraded", logger.String("table", sess.TableID), logger.Error(err))
	return models.Session{
		TableID:  sess.TableID,
		DeviceID: sess.DeviceID,
		Role:     models.SessionNone,
		CanOrder: true,
		Degraded: true,
	}
}

func (s *sessionService) Watch(ctx context.Context, tableID, deviceID, marker string) (<-chan models.Session, error) {
	return watch(ctx, s.feed, storage.ChangeFilter{TableID: tableID}, func(ctx context.Context) (models.Session, error) {
		sess := s.Resolve(ctx, tableID, deviceID, marker)
		if sess.ClearMarker {
			marker = ""
		}
		return sess, nil
	}, s.log)
}
