package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/metrics"
	"restrobook/pkg/models"
	"restrobook/storage"
)

type CartLine struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0,lte=99"`
}

type PlaceRequest struct {
	TableID      string     `json:"-"`
	DeviceID     string     `json:"-"`
	Lines        []CartLine `json:"items" validate:"dive"`
	Instructions string     `json:"instructions" validate:"max=500"`
	// ClientTotal is what the device displayed; it is only compared, never trusted.
	ClientTotal *decimal.Decimal `json:"total,omitempty"`
}

type PlacementService interface {
	Place(ctx context.Context, req PlaceRequest) (*models.Order, error)
}

type placementService struct {
	orders   storage.IOrderStorage
	menu     storage.IMenuStorage
	settings storage.ISettingsStorage
	log      logger.ILogger
	metrics  *metrics.Registry
	now      func() time.Time
	timeout  time.Duration
	leaseTTL time.Duration
	takeaway string
}

func NewPlacementService(stg storage.IStorage, cfg config.Config, log logger.ILogger, deps Deps) PlacementService {
	return &placementService{
		orders:   stg.Order(),
		menu:     stg.Menu(),
		settings: stg.Settings(),
		log:      log,
		metrics:  deps.Metrics,
		now:      deps.Clock,
		timeout:  cfg.OrderPlaceTimeout,
		leaseTTL: cfg.LeaseTTL,
		takeaway: cfg.TakeawayTableID,
	}
}

func (s *placementService) Place(ctx context.Context, req PlaceRequest) (*models.Order, error) {
	start := time.Now()
	o, err := s.place(ctx, req)
	s.metrics.PlaceLatencySec.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.PlaceRejected.WithLabelValues(rejectReason(err)).Inc()
		return nil, err
	}
	s.metrics.OrdersPlaced.Inc()
	s.log.Info("order placed",
		logger.String("order", o.ID),
		logger.String("table", o.TableID),
		logger.String("total", o.Total.String()),
		logger.Int("items", len(o.Items)),
	)
	return o, nil
}

func (s *placementService) place(ctx context.Context, req PlaceRequest) (*models.Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	takeaway := req.TableID == s.takeaway
	if !takeaway {
		if err := s.checkTable(ctx, req.TableID); err != nil {
			return nil, timeoutOr(err)
		}
	}

	cart, err := s.priceLines(ctx, req.Lines)
	if err != nil {
		return nil, timeoutOr(err)
	}

	order := &models.Order{
		TableID:       req.TableID,
		Items:         cart.Lines(),
		Total:         cart.Total(),
		Status:        models.StatusLive,
		Instructions:  req.Instructions,
		Suggestions:   []models.Suggestion{},
		HostDeviceID:  req.DeviceID,
		Takeaway:      takeaway,
		SchemaVersion: models.OrderSchemaVersion,
	}
	if err := validate.Struct(order); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if req.ClientTotal != nil && !req.ClientTotal.Equal(order.Total) {
		s.log.Warning("client total differs from menu prices",
			logger.String("table", req.TableID),
			logger.String("client", req.ClientTotal.String()),
			logger.String("computed", order.Total.String()),
		)
	}

	var lease *models.TableLease
	if !takeaway {
		lease = &models.TableLease{
			TableID:   req.TableID,
			DeviceID:  req.DeviceID,
			ExpiresAt: s.now().Add(s.leaseTTL),
		}
	}

	created, err := s.orders.Create(ctx, order, lease)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrTableOccupied
		}
		return nil, timeoutOr(fmt.Errorf("place order: %w", err))
	}
	return created, nil
}

func (s *placementService) checkTable(ctx context.Context, tableID string) error {
	// "07" or "+7" would be a second key for table 7.
	n, err := strconv.Atoi(tableID)
	if err != nil || n < 1 || strconv.Itoa(n) != tableID {
		return ErrUnknownTable
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}
	if n > settings.TotalTables {
		return ErrUnknownTable
	}
	return nil
}

// priceLines merges repeated items and prices every line from the menu.
func (s *placementService) priceLines(ctx context.Context, lines []CartLine) (*models.Cart, error) {
	var (
		ids []string
		qty = make(map[string]int)
	)
	for _, l := range lines {
		if _, ok := qty[l.ItemID]; !ok {
			ids = append(ids, l.ItemID)
		}
		qty[l.ItemID] += l.Quantity
	}

	menu, err := s.menu.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("read menu: %w", err)
	}

	cart := &models.Cart{}
	for _, id := range ids {
		m, ok := menu[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
		if !m.InStock {
			return nil, fmt.Errorf("%w: %s", ErrOutOfStock, m.Name)
		}
		cart.Add(*m)
		cart.SetQuantity(m.ID, qty[id])
	}
	return cart, nil
}

func timeoutOr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreTimeout, err)
	}
	return err
}

func rejectReason(err error) string {
	for _, e := range []error{ErrEmptyCart, ErrUnknownItem, ErrOutOfStock, ErrTableOccupied, ErrUnknownTable, ErrStoreTimeout, ErrInvalidOrder} {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return "error"
}
