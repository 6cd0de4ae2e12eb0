package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/models"
	"restrobook/storage"
)

// notifyChannel is written by the orders_notify trigger.
const notifyChannel = "live_orders"

type Store struct {
	pool   *pgxpool.Pool
	log    logger.ILogger
	hub    *storage.Hub
	cancel context.CancelFunc
	done   chan struct{}
}

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	url := cfg.PostgresURL()

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}

	if err := migrateUp(cfg.MigrationsPath, url, log); err != nil {
		pool.Close()
		return nil, err
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		log:    log,
		hub:    storage.NewHub(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(listenCtx)

	log.Info("Postgres connected")
	return s, nil
}

func migrateUp(path, url string, log logger.ILogger) error {
	if !filepath.IsAbs(path) {
		cwd, _ := os.Getwd()
		path = filepath.Join(cwd, path)
	}

	m, err := migrate.New("file://"+path, url)
	if err != nil {
		log.Error("migration init error", logger.Error(err), logger.String("path", path))
		return err
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

// listen holds one dedicated connection on LISTEN and republishes every notification
// through the hub. A dropped connection is re-established after a short pause.
func (s *Store) listen(ctx context.Context) {
	defer close(s.done)
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Warning("change feed listener stopped, reconnecting", logger.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	pc, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	conn := pc.Hijack()
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		var c models.OrderChange
		if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
			s.log.Warning("bad change payload", logger.String("payload", n.Payload), logger.Error(err))
			continue
		}
		s.hub.Publish(c)
	}
}

func (s *Store) Close() {
	s.cancel()
	<-s.done
	s.pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) User() storage.IUserStorage         { return NewUserRepo(s.pool, s.log) }
func (s *Store) Order() storage.IOrderStorage       { return NewOrderRepo(s.pool, s.log) }
func (s *Store) Menu() storage.IMenuStorage         { return NewMenuRepo(s.pool, s.log) }
func (s *Store) Settings() storage.ISettingsStorage { return NewSettingsRepo(s.pool, s.log) }
func (s *Store) Lease() storage.ILeaseStorage       { return NewLeaseRepo(s.pool, s.log) }
func (s *Store) Feed() storage.IChangeFeed          { return s.hub }

// isUniqueViolation reports a SQLSTATE 23505 from Postgres.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
