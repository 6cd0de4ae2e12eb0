package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/storage"
)

type leaseRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewLeaseRepo(db *pgxpool.Pool, log logger.ILogger) storage.ILeaseStorage {
	return &leaseRepo{db: db, log: log}
}

func (r *leaseRepo) Get(ctx context.Context, tableID string) (*models.TableLease, error) {
	var l models.TableLease
	err := r.db.QueryRow(ctx,
		`SELECT table_id, device_id, order_id::text, expires_at FROM table_leases WHERE table_id = $1`, tableID,
	).Scan(&l.TableID, &l.DeviceID, &l.OrderID, &l.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get lease", logger.String("table", tableID), logger.Error(err))
		return nil, err
	}
	return &l, nil
}

func (r *leaseRepo) Refresh(ctx context.Context, tableID, deviceID, orderID string, expiresAt time.Time) error {
	res, err := r.db.Exec(ctx,
		`UPDATE table_leases SET expires_at = $4 WHERE table_id = $1 AND device_id = $2 AND order_id::text = $3`,
		tableID, deviceID, orderID, expiresAt,
	)
	if err != nil {
		r.log.Error("failed to refresh lease", logger.String("table", tableID), logger.Error(err))
		return err
	}
	if res.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
