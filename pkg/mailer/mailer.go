package mailer

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers outgoing mail.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	from   string
	dialer dialer
	logg   *logger.Logger
}

// New returns an SMTP mailer, or a log-only mailer when no SMTP host is configured.
func New(cfg config.MailConfig, logg *logger.Logger) Mailer {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		return &LogMailer{logg: logg}
	}
	return &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		logg:   logg,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	out := gomail.NewMessage()
	out.SetHeader("From", m.from)
	out.SetHeader("To", msg.To)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/plain", msg.Body)

	if err := m.dialer.DialAndSend(out); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	if m.logg != nil {
		m.logg.Info(m.logg.WithField(ctx, "subject", msg.Subject), "mail.sent")
	}
	return nil
}

// LogMailer records mail in the log instead of sending it. Used in dev without SMTP.
type LogMailer struct {
	logg *logger.Logger
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := validate(msg); err != nil {
		return err
	}
	if m.logg != nil {
		ctx = m.logg.WithFields(ctx, map[string]any{
			"to":      msg.To,
			"subject": msg.Subject,
			"body":    msg.Body,
		})
		m.logg.Info(ctx, "mail.skipped_no_smtp")
	}
	return nil
}

func validate(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("mail recipient required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return fmt.Errorf("mail subject required")
	}
	return nil
}
