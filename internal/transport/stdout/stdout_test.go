package stdout

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mail-relay/internal/transport"
)

func envelope(raw string) *transport.Envelope {
	return &transport.Envelope{
		From:    "sender@example.com",
		To:      []string{"alice@example.com"},
		Message: strings.NewReader(raw),
	}
}

func TestDeliver_PlainText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	raw := strings.Join([]string{
		"From: \"Sender\" <sender@example.com>",
		"To: alice@example.com",
		"Subject: Monthly Report",
		"Message-ID: <abc@example.com>",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		"Please find the report attached.",
	}, "\r\n")

	require.NoError(t, tr.Deliver(context.Background(), envelope(raw)))

	output := buf.String()
	assert.True(t, strings.HasPrefix(output, separator))
	assert.True(t, strings.HasSuffix(output, separator))
	assert.Contains(t, output, "Envelope: sender@example.com -> alice@example.com")
	assert.Contains(t, output, "From: \"Sender\" <sender@example.com>")
	assert.Contains(t, output, "To: alice@example.com")
	assert.Contains(t, output, "Subject: Monthly Report")
	assert.Contains(t, output, "Message-ID: <abc@example.com>")
	assert.Contains(t, output, "Body:\nPlease find the report attached.")
	assert.NotContains(t, output, "Attachments:")
}

func TestDeliver_HTMLWithAttachments(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tr := NewWithWriter(&buf)

	raw := strings.Join([]string{
		"From: sender@example.com",
		"To: alice@example.com",
		"Subject: Report",
		"Content-Type: multipart/mixed; boundary=b1",
		"",
		"--b1",
		"Content-Type: text/html; charset=UTF-8",
		"",
		"<p>Hi</p>",
		"--b1",
		"Content-Type: application/pdf; name=report.pdf",
		"Content-Disposition: attachment; filename=report.pdf",
		"Content-Transfer-Encoding: base64",
		"",
		"aGVsbG8=",
		"--b1--",
	}, "\r\n")

	require.NoError(t, tr.Deliver(context.Background(), envelope(raw)))

	output := buf.String()
	assert.Contains(t, output, "Body (html):\n<p>Hi</p>")
	assert.Contains(t, output, "Attachments: report.pdf (application/pdf, 5 B)")
}

func TestDeliver_UnparseableMessage(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	err := NewWithWriter(&buf).Deliver(context.Background(), envelope("garbage without headers"))
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "stdout", New().Name())
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		bytes int
		want  string
	}{
		{name: "zero bytes", bytes: 0, want: "0 B"},
		{name: "small bytes", bytes: 512, want: "512 B"},
		{name: "kilobytes", bytes: 46080, want: "45.0 KB"},
		{name: "megabytes", bytes: 1258291, want: "1.2 MB"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, formatSize(tt.bytes))
		})
	}
}
