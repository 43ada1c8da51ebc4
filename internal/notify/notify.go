package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
)

// SubjectFreeAgents is the subject line of the ESPN alert.
const SubjectFreeAgents = "ESPN Free Agent Alert"

// ErrNotDelivered is returned by notifiers that accept an alert without
// delivering it. Callers must not record such alerts as sent.
var ErrNotDelivered = errors.New("alert not delivered")

// Notifier sends one alert to one recipient.
type Notifier interface {
	Send(ctx context.Context, to, subject string, body Body) error
}

// SMTPConfig holds mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Configured reports whether a mail server is set.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != ""
}

// New returns an SMTP notifier when cfg is configured and a log-only
// notifier otherwise.
func New(cfg SMTPConfig, logger *slog.Logger) Notifier {
	if s := NewSMTPSender(cfg, logger); s != nil {
		return s
	}
	return NewLogSender(logger)
}

// SMTPSender mails alerts through an SMTP server.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPSender returns nil if cfg is not configured.
func NewSMTPSender(cfg SMTPConfig, logger *slog.Logger) *SMTPSender {
	if !cfg.Configured() {
		return nil
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SMTPSender{cfg: cfg, logger: logger}
}

// Send mails body to the recipient. Servers that do not offer AUTH are
// retried without credentials.
func (s *SMTPSender) Send(ctx context.Context, to, subject string, body Body) error {
	if s == nil {
		return fmt.Errorf("smtp sender is not configured")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("no recipient for %q", subject)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := email.NewEmail()
	mail.From = s.cfg.From
	mail.To = []string{to}
	mail.Subject = subject
	mail.Text = []byte(body.Text())
	mail.HTML = []byte(body.HTML())

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	err := mail.Send(addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("send %q to %s: %w", subject, to, err)
	}

	s.logger.Info("Alert sent", "to", to, "subject", subject, "rows", body.Len())
	return nil
}

// LogSender writes alerts to the log instead of mailing them. Send always
// returns ErrNotDelivered. Nil-safe: a nil sender drops alerts without logging.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only notifier.
func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the alert.
func (s *LogSender) Send(_ context.Context, to, subject string, body Body) error {
	if s == nil {
		return ErrNotDelivered
	}
	s.logger.Info("Alert (smtp not configured)",
		"to", to, "subject", subject, "rows", body.Len(), "players", body.summary())
	return ErrNotDelivered
}
