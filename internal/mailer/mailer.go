// Package mailer implements the send operation: it resolves the sender,
// builds a MIME message from a validated request and hands it to the
// configured transport exactly once.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shineum/mail-relay/internal/dispatch"
	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/metrics"
	"github.com/shineum/mail-relay/internal/transport"
)

// Config holds the mailer's dependencies.
type Config struct {
	Transport transport.Transport

	// DefaultSender is used when a request has no from_email; normally the
	// SMTP username.
	DefaultSender string

	Logger *slog.Logger
}

// Mailer sends requests through a single transport. It holds no mutable
// state and is safe for concurrent use.
type Mailer struct {
	transport     transport.Transport
	defaultSender string
	logger        *slog.Logger
}

// Result is the tagged outcome of one send.
type Result struct {
	Outcome   Outcome
	MessageID string
	// ProviderMessageID is the id the transport's provider assigned, if any.
	ProviderMessageID string
	Err               error
}

// New creates a Mailer.
func New(cfg Config) *Mailer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Mailer{
		transport:     cfg.Transport,
		defaultSender: cfg.DefaultSender,
		logger:        logger,
	}
}

// Send delivers req and returns the error of Deliver's Result.
func (m *Mailer) Send(ctx context.Context, req email.Request) error {
	return m.Deliver(ctx, req).Err
}

// Deliver builds and submits one message. Failures are logged and counted
// here; nothing is retried.
func (m *Mailer) Deliver(ctx context.Context, req email.Request) Result {
	started := time.Now()

	env, err := m.deliver(ctx, req)
	res := Result{Outcome: Classify(err), Err: err}
	if env != nil {
		res.MessageID = env.MessageID
		res.ProviderMessageID = env.ProviderID
	}

	metrics.Emails.WithLabelValues(m.transport.Name(), string(res.Outcome)).Inc()
	metrics.SendDuration.WithLabelValues(m.transport.Name()).Observe(time.Since(started).Seconds())

	attrs := []any{
		"task_id", dispatch.TaskID(ctx),
		"transport", m.transport.Name(),
		"to", req.To,
		"subject", req.Subject,
		"attachments", len(req.Attachments),
		"outcome", string(res.Outcome),
		"duration_ms", time.Since(started).Milliseconds(),
	}
	if res.MessageID != "" {
		attrs = append(attrs, "message_id", res.MessageID)
	}
	if res.ProviderMessageID != "" {
		attrs = append(attrs, "provider_message_id", res.ProviderMessageID)
	}

	if err != nil {
		m.logger.Error("email_send_failed", append(attrs, "error", err)...)
		return res
	}
	m.logger.Info("email_sent", attrs...)
	return res
}

// deliver returns the submitted envelope, or nil if nothing reached the
// transport.
func (m *Mailer) deliver(ctx context.Context, req email.Request) (*transport.Envelope, error) {
	if checker, ok := m.transport.(transport.Checker); ok {
		if err := checker.Ready(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotConfigured, err)
		}
	}

	sender := req.Sender(m.defaultSender)
	if sender == "" {
		return nil, ErrNoSender
	}

	msg, messageID, err := buildMessage(req, sender)
	if err != nil {
		return nil, err
	}

	env := &transport.Envelope{
		From:      sender,
		To:        []string{req.To},
		MessageID: messageID,
		Message:   msg,
	}
	if err := m.transport.Deliver(ctx, env); err != nil {
		return env, fmt.Errorf("deliver via %s: %w", m.transport.Name(), err)
	}
	return env, nil
}
