package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/mailer"
	"restrobook/pkg/models"
	"restrobook/storage"
)

type SalesReport struct {
	Orders  int             `json:"orders"`
	Revenue decimal.Decimal `json:"revenue"`
	CSV     []byte          `json:"-"`
}

type SalesService interface {
	// Report covers every non-cancelled order created in [since, until); zero bounds are open.
	Report(ctx context.Context, since, until time.Time) (*SalesReport, error)
	// Email sends the report to to; callers pass the requesting admin's address.
	Email(ctx context.Context, to string, since, until time.Time) (*SalesReport, error)
}

type salesService struct {
	orders storage.IOrderStorage
	mailer Mailer
	log    logger.ILogger
	now    func() time.Time
}

func NewSalesService(stg storage.IStorage, cfg config.Config, log logger.ILogger, deps Deps) SalesService {
	return &salesService{
		orders: stg.Order(),
		mailer: deps.Mailer,
		log:    log,
		now:    deps.Clock,
	}
}

func (s *salesService) Report(ctx context.Context, since, until time.Time) (*SalesReport, error) {
	filter := models.OrderFilter{
		Statuses: []models.OrderStatus{models.StatusLive, models.StatusPreparing, models.StatusReady, models.StatusServed},
	}
	if !since.IsZero() {
		filter.Since = &since
	}
	if !until.IsZero() {
		filter.Until = &until
	}
	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("sales report: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Order ID", "Table", "Date", "Total Amount", "Items"}); err != nil {
		return nil, err
	}
	report := &SalesReport{Revenue: decimal.Zero}
	for _, o := range orders {
		lines := make([]string, len(o.Items))
		for i, it := range o.Items {
			lines[i] = fmt.Sprintf("%dx %s", it.Quantity, it.Name)
		}
		row := []string{
			o.ID,
			o.TableID,
			o.CreatedAt.Format("2006-01-02 15:04:05"),
			o.Total.StringFixed(2),
			strings.Join(lines, " | "),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
		report.Orders++
		report.Revenue = report.Revenue.Add(o.Total)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	report.CSV = buf.Bytes()
	return report, nil
}

func (s *salesService) Email(ctx context.Context, to string, since, until time.Time) (*SalesReport, error) {
	if to == "" {
		return nil, ErrNoRecipient
	}
	if s.mailer == nil {
		return nil, mailer.ErrNotConfigured
	}

	report, err := s.Report(ctx, since, until)
	if err != nil {
		return nil, err
	}
	if report.Orders == 0 {
		return nil, ErrNoOrders
	}

	day := s.now().Format("2006-01-02")
	body := fmt.Sprintf("Hello,\n\nPlease find attached your sales report for %s.\n\nTotal Orders: %d\nTotal Revenue: ₹%s\n\nThank you,\nRestro Menu Book System",
		day, report.Orders, report.Revenue.StringFixed(2))
	err = s.mailer.Send(ctx, to, "Sales Report - "+day, body, mailer.Attachment{
		Name: "sales_report_" + day + ".csv",
		Data: report.CSV,
	})
	if err != nil {
		return nil, fmt.Errorf("send sales report: %w", err)
	}
	s.log.Info("sales report sent", logger.String("to", to), logger.Int("orders", report.Orders))
	return report, nil
}
