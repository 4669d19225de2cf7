// Package transport defines the delivery backends the mailer hands finished
// messages to.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
)

// Transport delivers one fully built message. Implementations open and
// release their own resources per call.
type Transport interface {
	// Deliver submits env.Message to env.To with env.From as the envelope
	// sender.
	Deliver(ctx context.Context, env *Envelope) error

	// Name returns the human-readable name of this transport.
	Name() string
}

// Checker is implemented by transports that can tell, before a message is
// built, that a delivery cannot possibly succeed (e.g. missing credentials).
type Checker interface {
	Ready() error
}

// Envelope is the SMTP envelope plus the serialisable message.
type Envelope struct {
	From      string
	To        []string
	MessageID string
	Message   io.WriterTo

	// ProviderID is set by transports whose backend assigns its own id.
	ProviderID string
}

// Bytes serialises the message.
func (e *Envelope) Bytes() ([]byte, error) {
	if e.Message == nil {
		return nil, fmt.Errorf("envelope has no message")
	}
	var buf bytes.Buffer
	if _, err := e.Message.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialise message: %w", err)
	}
	return buf.Bytes(), nil
}
