package service

import (
	"context"
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"restrobook/config"
	"restrobook/pkg/logger"
	"restrobook/pkg/mailer"
	"restrobook/pkg/metrics"
	"restrobook/storage"
)

var validate = validator.New()

type IServiceManager interface {
	Lifecycle() LifecycleService
	Session() SessionService
	Mailbox() MailboxService
	Placement() PlacementService
	Menu() MenuService
	User() UserService
	Sales() SalesService
}

// Mailer sends one message with optional attachments.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string, attachments ...mailer.Attachment) error
}

// ImageUploader stores an image and returns its public URL.
type ImageUploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Deps are the outside collaborators of the services. Zero fields fall back to defaults.
type Deps struct {
	Mailer  Mailer
	Images  ImageUploader
	Metrics *metrics.Registry
	Clock   func() time.Time
}

type service struct {
	lifecycle LifecycleService
	session   SessionService
	mailbox   MailboxService
	placement PlacementService
	menu      MenuService
	user      UserService
	sales     SalesService
}

func New(stg storage.IStorage, cfg config.Config, log logger.ILogger, deps Deps) IServiceManager {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		lifecycle: NewLifecycleService(stg, log, deps.Metrics),
		session:   NewSessionService(stg, cfg, log, deps),
		mailbox:   NewMailboxService(stg, cfg, log, deps),
		placement: NewPlacementService(stg, cfg, log, deps),
		menu:      NewMenuService(stg, cfg, log, deps.Images),
		user:      NewUserService(stg, cfg, log),
		sales:     NewSalesService(stg, cfg, log, deps),
	}
}

func (s *service) Lifecycle() LifecycleService { return s.lifecycle }
func (s *service) Session() SessionService     { return s.session }
func (s *service) Mailbox() MailboxService     { return s.mailbox }
func (s *service) Placement() PlacementService { return s.placement }
func (s *service) Menu() MenuService           { return s.menu }
func (s *service) User() UserService           { return s.user }
func (s *service) Sales() SalesService         { return s.sales }

// watch emits load() once, then again after every change hint matching filter,
// until ctx is done. The returned channel is closed on exit.
func watch[T any](ctx context.Context, feed storage.IChangeFeed, filter storage.ChangeFilter, load func(context.Context) (T, error), log logger.ILogger) (<-chan T, error) {
	hints, err := feed.Subscribe(ctx, filter)
	if err != nil {
		return nil, err
	}
	first, err := load(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan T, 1)
	out <- first
	go func() {
		defer close(out)
		for range hints {
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warning("watch reload failed", logger.Error(err))
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
