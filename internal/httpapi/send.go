package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/shineum/mail-relay/internal/email"
	"github.com/shineum/mail-relay/internal/metrics"
)

// Reasons recorded in mail_relay_requests_rejected_total.
const (
	rejectValidation = "validation"
	rejectSchedule   = "schedule"
)

// sendPayload is the wire form of email.Request. Pointers distinguish a
// missing field from an empty string: subject and body must be present but
// may be empty.
type sendPayload struct {
	To          string              `json:"to" binding:"required,email"`
	Subject     *string             `json:"subject" binding:"required"`
	Body        *string             `json:"body" binding:"required"`
	HTML        bool                `json:"html"`
	FromName    *string             `json:"from_name"`
	FromEmail   *string             `json:"from_email" binding:"omitempty,email"`
	Attachments []attachmentPayload `json:"attachments" binding:"omitempty,dive"`
}

type attachmentPayload struct {
	Filename      *string `json:"filename" binding:"required"`
	ContentBase64 *string `json:"content_base64" binding:"required"`
	MIMEType      *string `json:"mime_type"`
}

func (p sendPayload) toRequest() email.Request {
	req := email.Request{
		To:        p.To,
		Subject:   deref(p.Subject),
		Body:      deref(p.Body),
		HTML:      p.HTML,
		FromName:  deref(p.FromName),
		FromEmail: deref(p.FromEmail),
	}
	if len(p.Attachments) > 0 {
		req.Attachments = make([]email.Attachment, 0, len(p.Attachments))
		for _, a := range p.Attachments {
			mimeType := email.DefaultMIMEType
			if a.MIMEType != nil {
				mimeType = *a.MIMEType
			}
			req.Attachments = append(req.Attachments, email.Attachment{
				Filename:      deref(a.Filename),
				ContentBase64: deref(a.ContentBase64),
				MIMEType:      mimeType,
			})
		}
	}
	return req
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// queuedResponse keeps the field order of the acknowledgement stable.
type queuedResponse struct {
	Status  string `json:"status"`
	To      string `json:"to"`
	Subject string `json:"subject"`
}

type sendHandler struct {
	scheduler Scheduler
	sender    Sender
	logger    *slog.Logger
}

func newSendHandler(scheduler Scheduler, sender Sender, logger *slog.Logger) *sendHandler {
	return &sendHandler{scheduler: scheduler, sender: sender, logger: logger}
}

func (handler *sendHandler) send(contextGin *gin.Context) {
	var payload sendPayload
	if err := contextGin.ShouldBindJSON(&payload); err != nil {
		metrics.RequestsRejected.WithLabelValues(rejectValidation).Inc()
		contextGin.JSON(http.StatusUnprocessableEntity, gin.H{"detail": validationDetail(err)})
		return
	}

	req := payload.toRequest()
	task, err := handler.scheduler.Submit("send_email", func(ctx context.Context) error {
		return handler.sender.Send(ctx, req)
	})
	if err != nil {
		metrics.RequestsRejected.WithLabelValues(rejectSchedule).Inc()
		handler.logger.Error("send_schedule_failed", "to", req.To, "error", err)
		contextGin.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
		return
	}

	metrics.RequestsQueued.Inc()
	handler.logger.Info("send_queued",
		"task_id", task.ID,
		"to", req.To,
		"subject", req.Subject,
		"attachments", len(req.Attachments),
	)
	contextGin.JSON(http.StatusOK, queuedResponse{Status: "queued", To: req.To, Subject: req.Subject})
}

// fieldError is one entry of a 422 response.
type fieldError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func validationDetail(err error) []fieldError {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		out := make([]fieldError, 0, len(validationErrs))
		for _, fe := range validationErrs {
			out = append(out, fieldError{
				Loc:  fieldLocation(fe.Namespace()),
				Msg:  validationMessage(fe),
				Type: validationType(fe.Tag()),
			})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []any{"body"}
		if typeErr.Field != "" {
			loc = append(loc, fieldLocation("payload."+typeErr.Field)[1:]...)
		}
		return []fieldError{{
			Loc:  loc,
			Msg:  fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			Type: "type_error",
		}}
	}

	return []fieldError{{
		Loc:  []any{"body"},
		Msg:  err.Error(),
		Type: "value_error.jsondecode",
	}}
}

// fieldLocation turns a validator namespace such as
// "sendPayload.attachments[0].filename" into ["body","attachments",0,"filename"].
func fieldLocation(namespace string) []any {
	loc := []any{"body"}
	segments := strings.Split(namespace, ".")
	for _, segment := range segments[1:] {
		name, rest, indexed := strings.Cut(segment, "[")
		if name != "" {
			loc = append(loc, name)
		}
		if !indexed {
			continue
		}
		index := strings.TrimSuffix(rest, "]")
		if n, err := strconv.Atoi(index); err == nil {
			loc = append(loc, n)
		} else {
			loc = append(loc, index)
		}
	}
	return loc
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field required"
	case "email":
		return "value is not a valid email address"
	default:
		return fmt.Sprintf("failed on the '%s' rule", fe.Tag())
	}
}

func validationType(tag string) string {
	switch tag {
	case "required":
		return "value_error.missing"
	case "email":
		return "value_error.email"
	default:
		return "value_error." + tag
	}
}

var registerOnce sync.Once

// registerJSONFieldNames makes validator report json names instead of Go
// field names.
func registerJSONFieldNames() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}
