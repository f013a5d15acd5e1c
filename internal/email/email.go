// Package email sends HTML e-mail through SES, SMTP or the log and resolves
// the mentee placeholders of bulk e-mail bodies.
package email

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/ibuddy-app/ibuddy-service/internal/retry"
)

var (
	ErrNoRecipients = errors.New("email has no recipients")
	// ErrUndeliverable marks transport failures that a retry cannot fix or
	// that may already have delivered the message.
	ErrUndeliverable = errors.New("email cannot be retried")
)

// Message is one HTML e-mail. SenderName is shown in front of the configured
// source address.
type Message struct {
	To         []string
	Cc         []string
	ReplyTo    string
	SenderName string
	Subject    string
	HTMLBody   string
}

func (m Message) validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	return nil
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// FormatFrom renders `name <address>`, encoding non-ASCII names.
func FormatFrom(name, address string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return address
	}
	return (&mail.Address{Name: name, Address: address}).String()
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
	Source string
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	s.Logger.InfoContext(ctx, "Email not delivered, log transport",
		"from", FormatFrom(msg.SenderName, s.Source),
		"to", msg.To,
		"reply_to", msg.ReplyTo,
		"subject", msg.Subject,
		"body_bytes", len(msg.HTMLBody),
	)
	return nil
}

type retryingSender struct {
	next Sender
	cfg  retry.Config
}

// NewRetryingSender retries transient transport failures with backoff.
// Invalid messages and ErrUndeliverable fail at once.
func NewRetryingSender(next Sender, cfg retry.Config) Sender {
	if cfg.MaxAttempts <= 1 {
		return next
	}
	return &retryingSender{next: next, cfg: cfg}
}

func (s *retryingSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	return retry.Do(ctx, s.cfg, isPermanent, func() error { return s.next.Send(ctx, msg) })
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrUndeliverable) || errors.Is(err, ErrNoRecipients)
}
