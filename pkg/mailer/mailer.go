package mailer

import (
	"context"
	"errors"
	"io"

	"gopkg.in/gomail.v2"

	"restrobook/config"
	"restrobook/pkg/logger"
)

// ErrNotConfigured is returned when no SMTP credentials are set.
var ErrNotConfigured = errors.New("mailer: EMAIL_USER or EMAIL_PASS not set")

type Attachment struct {
	Name string
	Data []byte
}

type Mailer struct {
	dialer *gomail.Dialer
	from   string
	log    logger.ILogger
}

func New(cfg config.Config, log logger.ILogger) *Mailer {
	m := &Mailer{log: log}
	if cfg.SMTPUser == "" || cfg.SMTPPassword == "" {
		return m
	}
	m.dialer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	m.from = cfg.SMTPUser
	return m
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string, attachments ...Attachment) error {
	if m.dialer == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", m.from, "Restro Menu Book")
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	for _, a := range attachments {
		data := a.Data
		msg.Attach(a.Name, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		m.log.Error("failed to send mail", logger.String("to", to), logger.Error(err))
		return err
	}
	m.log.Info("mail sent", logger.String("to", to), logger.String("subject", subject))
	return nil
}
