// Package email defines the request and message models shared by the relay's
// HTTP surface, mailer and transports.
package email

import "strings"

// DefaultMIMEType is applied to attachments that do not declare a type.
const DefaultMIMEType = "application/octet-stream"

// Request is a validated send request. It is not modified after validation.
type Request struct {
	To          string
	Subject     string
	Body        string
	HTML        bool
	FromName    string
	FromEmail   string
	Attachments []Attachment
}

// Attachment is a file carried inline in a Request as base64 text.
type Attachment struct {
	Filename      string
	ContentBase64 string
	MIMEType      string
}

// Sender returns the envelope sender: FromEmail when set, otherwise
// fallback.
func (r Request) Sender(fallback string) string {
	if r.FromEmail != "" {
		return r.FromEmail
	}
	return fallback
}

// MIMEParts splits MIMEType on the first "/". Missing halves fall back to
// "application" and "octet-stream" independently.
func (a Attachment) MIMEParts() (maintype, subtype string) {
	raw := strings.TrimSpace(a.MIMEType)
	if raw == "" {
		raw = DefaultMIMEType
	}
	maintype, subtype, _ = strings.Cut(raw, "/")
	maintype = strings.TrimSpace(maintype)
	subtype = strings.TrimSpace(subtype)
	if maintype == "" {
		maintype = "application"
	}
	if subtype == "" {
		subtype = "octet-stream"
	}
	return maintype, subtype
}

// ContentType joins MIMEParts back into a "type/subtype" string.
func (a Attachment) ContentType() string {
	maintype, subtype := a.MIMEParts()
	return maintype + "/" + subtype
}
