// Package email delivers rendered notifications.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Sender interface {
	Send(ctx context.Context, to string, subject string, body string) error
	ProviderID() string
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible), or PLAIN auth
// when a username is configured.
type SMTPSender struct {
	addr string
	host string
	from string
	auth smtp.Auth
	now  func() time.Time
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Username string
	Password string
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	host := strings.TrimSpace(cfg.Host)
	port := strings.TrimSpace(cfg.Port)
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = "no-reply@interviewdesk.local"
	}
	s := &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		host: host,
		from: from,
		now:  time.Now,
	}
	if user := strings.TrimSpace(cfg.Username); user != "" {
		s.auth = smtp.PlainAuth("", user, cfg.Password, host)
	}
	return s
}

func (s *SMTPSender) ProviderID() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, to string, subject string, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to = strings.TrimSpace(to)
	if to == "" || strings.ContainsAny(to, "\r\n") {
		return fmt.Errorf("invalid recipient %q", to)
	}
	msg := buildMessage(s.from, to, subject, body, s.now(), s.messageID())
	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(msg))
}

func (s *SMTPSender) messageID() string {
	domain := "interviewdesk.local"
	if at := strings.LastIndex(s.from, "@"); at >= 0 && at < len(s.from)-1 {
		domain = s.from[at+1:]
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}

func buildMessage(from, to, subject, body string, date time.Time, messageID string) string {
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)
	body = strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n")
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMessage-ID: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		date.UTC().Format(time.RFC1123Z),
		messageID,
		body,
	)
}

// LogSender only logs the message. Used for local runs without a mail catcher.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) ProviderID() string { return "log" }

func (s *LogSender) Send(ctx context.Context, to string, subject string, _ string) error {
	s.logger.InfoContext(ctx, "email suppressed", "to", to, "subject", subject)
	return nil
}
