package mailer

import (
	"encoding/base64"
	"io"
	"mime"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/mail.v2"

	"github.com/shineum/mail-relay/internal/email"
)

// buildMessage composes the MIME message for req, sent from sender. Every
// attachment is decoded before anything else is returned, so a single bad
// attachment yields no message at all.
func buildMessage(req email.Request, sender string) (*mail.Message, string, error) {
	decoded := make([][]byte, len(req.Attachments))
	for i, att := range req.Attachments {
		data, err := decodeBase64(att.ContentBase64)
		if err != nil {
			return nil, "", &AttachmentError{Filename: att.Filename, Err: err}
		}
		decoded[i] = data
	}

	messageID := newMessageID(sender)

	m := mail.NewMessage()
	m.SetAddressHeader("From", sender, req.FromName)
	m.SetHeader("To", req.To)
	m.SetHeader("Subject", req.Subject)
	m.SetHeader("Message-ID", messageID)

	if req.HTML {
		m.SetBody("text/html", req.Body)
	} else {
		m.SetBody("text/plain", req.Body)
	}

	for i, att := range req.Attachments {
		data := decoded[i]
		m.Attach(att.Filename,
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
			mail.SetHeader(map[string][]string{
				"Content-Type":        {attachmentContentType(att)},
				"Content-Disposition": {mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename})},
			}),
		)
	}

	return m, messageID, nil
}

// decodeBase64 accepts standard padded base64. Bytes outside the alphabet
// (whitespace, line breaks, stray punctuation) are discarded before decoding;
// the padding must still come out right.
func decodeBase64(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == '+', r == '/', r == '=':
			return r
		}
		return -1
	}, s)
	return base64.StdEncoding.DecodeString(clean)
}

// attachmentContentType renders the type with a name parameter. Types that
// are not valid media-type tokens fall back to application/octet-stream.
func attachmentContentType(att email.Attachment) string {
	params := map[string]string{"name": att.Filename}
	if ct := mime.FormatMediaType(att.ContentType(), params); ct != "" {
		return ct
	}
	return mime.FormatMediaType(email.DefaultMIMEType, params)
}

func newMessageID(sender string) string {
	domain := "localhost"
	if _, d, ok := strings.Cut(sender, "@"); ok && d != "" {
		domain = d
	}
	return "<" + uuid.NewString() + "@" + domain + ">"
}
