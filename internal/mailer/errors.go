package mailer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured wraps a transport's Ready error.
	ErrNotConfigured = errors.New("mailer: transport not configured")

	// ErrNoSender is returned when neither from_email nor a default sender
	// is available.
	ErrNoSender = errors.New("mailer: no sender address (set from_email or SMTP_USER)")
)

// AttachmentError reports an attachment whose content could not be decoded.
// The whole message is abandoned when one is returned.
type AttachmentError struct {
	Filename string
	Err      error
}

func (e *AttachmentError) Error() string {
	return fmt.Sprintf("bad base64 for attachment %s: %v", e.Filename, e.Err)
}

func (e *AttachmentError) Unwrap() error {
	return e.Err
}

// Outcome tags the result of a send.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeConfigError     Outcome = "config_error"
	OutcomeAttachmentError Outcome = "attachment_error"
	OutcomeTransportError  Outcome = "transport_error"
)

// Classify maps an error returned by Send to its Outcome. A nil error is
// OutcomeSent.
func Classify(err error) Outcome {
	var attErr *AttachmentError
	switch {
	case err == nil:
		return OutcomeSent
	case errors.Is(err, ErrNotConfigured), errors.Is(err, ErrNoSender):
		return OutcomeConfigError
	case errors.As(err, &attErr):
		return OutcomeAttachmentError
	default:
		return OutcomeTransportError
	}
}
