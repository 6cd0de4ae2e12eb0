package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/storage"
)

type settingsRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewSettingsRepo(db *pgxpool.Pool, log logger.ILogger) storage.ISettingsStorage {
	return &settingsRepo{db: db, log: log}
}

func (r *settingsRepo) Get(ctx context.Context) (*models.Settings, error) {
	var s models.Settings
	err := r.db.QueryRow(ctx, `SELECT total_tables, updated_at FROM settings WHERE id = 1`).Scan(&s.TotalTables, &s.UpdatedAt)
	if err != nil {
		r.log.Error("failed to get settings", logger.Error(err))
		return nil, err
	}
	return &s, nil
}

func (r *settingsRepo) Set(ctx context.Context, settings models.Settings) (*models.Settings, error) {
	var s models.Settings
	query := `
		INSERT INTO settings (id, total_tables, updated_at) VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET total_tables = EXCLUDED.total_tables, updated_at = NOW()
		RETURNING total_tables, updated_at
	`
	if err := r.db.QueryRow(ctx, query, settings.TotalTables).Scan(&s.TotalTables, &s.UpdatedAt); err != nil {
		r.log.Error("failed to save settings", logger.Error(err))
		return nil, err
	}
	return &s, nil
}
