// Package stdout implements a dry-run Transport that prints a readable
// summary of each message instead of delivering it.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/shineum/mail-relay/internal/parser"
	"github.com/shineum/mail-relay/internal/transport"
)

const separator = "========================================\n"

// Transport prints messages to a writer.
type Transport struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout}
}

// NewWithWriter creates a Transport that writes to w.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}

// Deliver parses the built message and prints it. Write errors are ignored.
func (t *Transport) Deliver(_ context.Context, env *transport.Envelope) error {
	raw, err := env.Bytes()
	if err != nil {
		return fmt.Errorf("stdout: %w", err)
	}
	msg, err := parser.Parse(raw)
	if err != nil {
		return fmt.Errorf("stdout: %w", err)
	}

	var b strings.Builder
	b.WriteString(separator)
	fmt.Fprintf(&b, "Envelope: %s -> %s\n", env.From, strings.Join(env.To, ", "))
	fmt.Fprintf(&b, "From: %s\n", msg.From)
	fmt.Fprintf(&b, "To: %s\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	if msg.MessageID != "" {
		fmt.Fprintf(&b, "Message-ID: %s\n", msg.MessageID)
	}

	if msg.HTMLBody != "" {
		b.WriteString("Body (html):\n")
		b.WriteString(msg.HTMLBody + "\n")
	} else {
		b.WriteString("Body:\n")
		b.WriteString(msg.TextBody + "\n")
	}

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s, %s)", att.Filename, att.ContentType, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}
	b.WriteString(separator)

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = io.WriteString(t.writer, b.String())

	return nil
}

func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
