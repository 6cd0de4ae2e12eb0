package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/storage"
)

type userRepo struct {
	db  *pgxpool.Pool
	log logger.ILogger
}

func NewUserRepo(db *pgxpool.Pool, log logger.ILogger) storage.IUserStorage {
	return &userRepo{db: db, log: log}
}

func (r *userRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	id := user.ID
	if id == "" {
		id = uuid.NewString()
	}
	var out models.User
	query := `
		INSERT INTO users (id, email, phone, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, email, phone, password_hash, role, created_at
	`
	err := r.db.QueryRow(ctx, query, id, user.Email, user.Phone, user.PasswordHash, user.Role).Scan(
		&out.ID, &out.Email, &out.Phone, &out.PasswordHash, &out.Role, &out.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, storage.ErrConflict
		}
		r.log.Error("failed to create user", logger.Error(err))
		return nil, err
	}
	return &out, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, storage.ErrNotFound
	}
	return r.get(ctx, `SELECT id::text, email, phone, password_hash, role, created_at FROM users WHERE id = $1`, id)
}

func (r *userRepo) GetByLogin(ctx context.Context, login string) (*models.User, error) {
	return r.get(ctx, `SELECT id::text, email, phone, password_hash, role, created_at FROM users WHERE email = $1 OR phone = $1`, login)
}

func (r *userRepo) get(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.Phone, &user.PasswordHash, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		r.log.Error("failed to get user", logger.Error(err))
		return nil, err
	}
	return &user, nil
}
