package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/storage"
)

const orderColumns = `id::text, table_id, items, total::text, status, instructions, suggestions,
	host_device_id, takeaway, schema_version, created_at, updated_at`

type orderRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewOrderRepo(db *pgxpool.Pool, log logger.ILogger) storage.IOrderStorage {
	return &orderRepo{db: db, log: log}
}

func (r *orderRepo) Create(ctx context.Context, order *models.Order, lease *models.TableLease) (*models.Order, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}
	suggestions := order.Suggestions
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	sugg, err := json.Marshal(suggestions)
	if err != nil {
		return nil, err
	}
	id := order.ID
	if id == "" {
		id = uuid.NewString()
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("failed to begin order tx", logger.Error(err))
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (id, table_id, items, total, status, instructions, suggestions, host_device_id, takeaway, schema_version)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9, $10)
		RETURNING ` + orderColumns
	created, err := scanOrder(tx.QueryRow(ctx, query,
		id,
		order.TableID,
		items,
		order.Total.String(),
		order.Status,
		order.Instructions,
		sugg,
		order.HostDeviceID,
		order.Takeaway,
		order.SchemaVersion,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		r.log.Error("failed to create order", logger.Error(err))
		return nil, err
	}

	if lease != nil {
		// An existing lease may only be replaced once it expired or its order left the active set.
		res, err := tx.Exec(ctx, `
			INSERT INTO table_leases (table_id, device_id, order_id, expires_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (table_id) DO UPDATE
			SET device_id = EXCLUDED.device_id, order_id = EXCLUDED.order_id, expires_at = EXCLUDED.expires_at
			WHERE table_leases.expires_at <= NOW()
			   OR NOT EXISTS (
				SELECT 1 FROM orders o
				WHERE o.id = table_leases.order_id AND o.status IN ('live', 'preparing', 'ready')
			   )`,
			created.TableID, lease.DeviceID, created.ID, lease.ExpiresAt,
		)
		if err != nil {
			r.log.Error("failed to take table lease", logger.String("table", created.TableID), logger.Error(err))
			return nil, err
		}
		if res.RowsAffected() == 0 {
			return nil, storage.ErrConflict
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		r.log.Error("failed to commit order", logger.Error(err))
		return nil, err
	}
	return created, nil
}

func (r *orderRepo) GetByID(ctx context.Context, id string) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get order by id", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) GetActiveByTable(ctx context.Context, tableID string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE table_id = $1 AND status IN ('live', 'preparing', 'ready') AND NOT takeaway`
	o, err := scanOrder(r.db.QueryRow(ctx, query, tableID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get active order", logger.String("table", tableID), logger.Error(err))
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) List(ctx context.Context, filter models.OrderFilter) ([]*models.Order, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.TableID != "" {
		where = append(where, "table_id = "+arg(filter.TableID))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "status = ANY("+arg(statusStrings(filter.Statuses))+")")
	}
	if filter.Since != nil {
		where = append(where, "created_at >= "+arg(*filter.Since))
	}
	if filter.Until != nil {
		where = append(where, "created_at < "+arg(*filter.Until))
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	if filter.Descending {
		query += " ORDER BY created_at DESC, id"
	} else {
		query += " ORDER BY created_at ASC, id"
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("failed to list orders", logger.Error(err))
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			r.log.Error("failed to scan order", logger.Error(err))
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *orderRepo) UpdateStatus(ctx context.Context, id string, from []models.OrderStatus, to models.OrderStatus) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("failed to begin status tx", logger.Error(err))
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `UPDATE orders SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + orderColumns
	o, err := scanOrder(tx.QueryRow(ctx, query, id, to, statusStrings(from)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.missOrConflict(ctx, id)
		}
		r.log.Error("failed to update order status", logger.String("id", id), logger.Error(err))
		return nil, err
	}

	if to.IsTerminal() {
		if _, err := tx.Exec(ctx, `DELETE FROM table_leases WHERE order_id = $1`, id); err != nil {
			r.log.Error("failed to release table lease", logger.String("id", id), logger.Error(err))
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.log.Error("failed to commit status", logger.Error(err))
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) AddSuggestion(ctx context.Context, id string, s models.Suggestion, limit int) (*models.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}
	payload, err := json.Marshal([]models.Suggestion{s})
	if err != nil {
		return nil, err
	}

	query := `UPDATE orders SET suggestions = suggestions || $2::jsonb, updated_at = NOW()
		WHERE id = $1 AND status IN ('live', 'preparing', 'ready') AND jsonb_array_length(suggestions) < $3
		RETURNING ` + orderColumns
	o, err := scanOrder(r.db.QueryRow(ctx, query, id, payload, limit))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.log.Error("failed to add suggestion", logger.String("id", id), logger.Error(err))
		return nil, err
	}

	var (
		status models.OrderStatus
		count  int
	)
	err = r.db.QueryRow(ctx, `SELECT status, jsonb_array_length(suggestions) FROM orders WHERE id = $1`, id).Scan(&status, &count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	if !status.IsActive() {
		return nil, storage.ErrConflict
	}
	return nil, storage.ErrLimitReached
}

func (r *orderRepo) RemoveSuggestion(ctx context.Context, id string, key models.SuggestionKey) (*models.Suggestion, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.log.Error("failed to begin suggestion tx", logger.Error(err))
		return nil, err
	}
	defer tx.Rollback(ctx)

	var (
		status models.OrderStatus
		raw    []byte
	)
	err = tx.QueryRow(ctx, `SELECT status, suggestions FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status, &raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to lock order", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	if !status.IsActive() {
		return nil, storage.ErrConflict
	}

	var list []models.Suggestion
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	idx := -1
	for i, s := range list {
		if key.Matches(s) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, storage.ErrNotFound
	}
	removed := list[idx]
	list = append(list[:idx], list[idx+1:]...)

	payload, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET suggestions = $2, updated_at = NOW() WHERE id = $1`, id, payload); err != nil {
		r.log.Error("failed to write suggestions", logger.String("id", id), logger.Error(err))
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &removed, nil
}

func (r *orderRepo) Truncate(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `TRUNCATE TABLE table_leases, orders`)
	if err != nil {
		r.log.Error("failed to truncate orders", logger.Error(err))
	}
	return err
}

func (r *orderRepo) missOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrConflict
}

func scanOrder(row pgx.Row) (*models.Order, error) {
	var (
		o           models.Order
		items, sugg []byte
		total       string
	)
	err := row.Scan(
		&o.ID,
		&o.TableID,
		&items,
		&total,
		&o.Status,
		&o.Instructions,
		&sugg,
		&o.HostDeviceID,
		&o.Takeaway,
		&o.SchemaVersion,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	o.Suggestions = []models.Suggestion{}
	if err := json.Unmarshal(sugg, &o.Suggestions); err != nil {
		return nil, err
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return nil, err
	}
	return &o, nil
}

func statusStrings(ss []models.OrderStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
