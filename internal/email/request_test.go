package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentMIMEParts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mimeType string
		wantMain string
		wantSub  string
	}{
		{name: "image png", mimeType: "image/png", wantMain: "image", wantSub: "png"},
		{name: "empty", mimeType: "", wantMain: "application", wantSub: "octet-stream"},
		{name: "default", mimeType: DefaultMIMEType, wantMain: "application", wantSub: "octet-stream"},
		{name: "no slash", mimeType: "image", wantMain: "image", wantSub: "octet-stream"},
		{name: "missing maintype", mimeType: "/pdf", wantMain: "application", wantSub: "pdf"},
		{name: "trailing slash", mimeType: "text/", wantMain: "text", wantSub: "octet-stream"},
		{name: "split on first slash", mimeType: "application/vnd.a/b", wantMain: "application", wantSub: "vnd.a/b"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			main, sub := Attachment{MIMEType: tt.mimeType}.MIMEParts()
			assert.Equal(t, tt.wantMain, main)
			assert.Equal(t, tt.wantSub, sub)
		})
	}
}

func TestAttachmentContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image/png", Attachment{MIMEType: "image/png"}.ContentType())
	assert.Equal(t, "application/octet-stream", Attachment{}.ContentType())
}

func TestRequestSender(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "relay@example.com", Request{}.Sender("relay@example.com"))
	assert.Equal(t, "me@example.com", Request{FromEmail: "me@example.com"}.Sender("relay@example.com"))
	assert.Empty(t, Request{}.Sender(""))
}
