// Package response writes the gateway's single wire envelope.
//
// Success bodies are {"data": ..., "meta": {...}} and error bodies are
// {"code": "...", "message": "...", "details": {...}}. Exactly one envelope is
// written per request; Track lets the senders detect a second attempt.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/conneroisu/apigateway/internal/correlation"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
)

// ErrAlreadySent is returned when a response was already written for the request.
var ErrAlreadySent = errors.New("response already sent")

// Meta is a free-form annotation attached to success envelopes.
type Meta map[string]any

// Success is the success envelope.
type Success struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta,omitempty"`
}

// Error is the error envelope.
type Error struct {
	Code    gwerrors.Code  `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

type sendOptions struct {
	status int
	meta   Meta
}

// Option customizes SendSuccess.
type Option func(*sendOptions)

// WithStatus overrides the default 200 status. Non-2xx values are ignored.
func WithStatus(status int) Option {
	return func(o *sendOptions) {
		if status >= 200 && status < 300 {
			o.status = status
		}
	}
}

// WithMeta attaches meta to the envelope.
func WithMeta(meta Meta) Option {
	return func(o *sendOptions) {
		o.meta = meta
	}
}

// SendSuccess writes data in a success envelope.
func SendSuccess(w http.ResponseWriter, r *http.Request, data any, opts ...Option) error {
	options := sendOptions{status: http.StatusOK}
	for _, opt := range opts {
		opt(&options)
	}

	var meta Meta
	if len(options.meta) > 0 {
		meta = options.meta
	}

	return write(w, r, options.status, Success{Data: data, Meta: meta})
}

// SendError writes err in an error envelope with err.StatusCode. Details are
// dropped from internal errors unless the request was marked with
// ExposeDetails.
func SendError(w http.ResponseWriter, r *http.Request, err *gwerrors.GatewayError) error {
	if err == nil {
		err = gwerrors.ToGatewayError(nil)
	}

	body := Error{
		Code:    err.Code,
		Message: err.Message,
	}
	if err.HasDetails() && (err.Code != gwerrors.CodeInternal || exposeDetails(r)) {
		body.Details = err.Details
	}

	return write(w, r, err.StatusCode, body)
}

func write(w http.ResponseWriter, r *http.Request, status int, body any) error {
	logger := correlation.Logger(r.Context(), nil)

	if tw, ok := w.(*trackingWriter); ok && tw.Written() {
		logger.Warn(r.Context(), ErrAlreadySent, "Dropping duplicate response",
			"status", status)
		return ErrAlreadySent
	}

	if err := r.Context().Err(); err != nil {
		logger.Debug(r.Context(), "Client went away before response was written",
			"status", status)
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		logger.Error(r.Context(), err, "Failed to encode response envelope")
		status = http.StatusInternalServerError
		payload, _ = json.Marshal(Error{
			Code:    gwerrors.CodeInternal,
			Message: "Internal server error",
		})
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(append(payload, '\n')); err != nil {
		return err
	}

	return nil
}
