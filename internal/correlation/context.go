// Package correlation attaches a request id, a correlation id and a
// request-scoped logger to every inbound request before handler logic runs.
package correlation

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/conneroisu/apigateway/internal/logging"
)

const (
	// DefaultHeader is the inbound header a correlation id is copied from.
	DefaultHeader = "X-Correlation-ID"

	// RequestIDHeader echoes the generated request id back to the caller.
	RequestIDHeader = "X-Request-ID"

	maxCorrelationIDLength = 128
)

// RequestContext is the per-request correlation state. It is created when a
// request enters the pipeline and never shared across requests.
type RequestContext struct {
	RequestID     string
	CorrelationID string
	Logger        logging.Logger
}

type contextKey struct{}

// WithContext returns a copy of ctx carrying rc.
func WithContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the RequestContext attached to ctx, if any.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	if ctx == nil {
		return nil, false
	}
	rc, ok := ctx.Value(contextKey{}).(*RequestContext)
	return rc, ok && rc != nil
}

// Logger returns the request-scoped logger from ctx, or fallback when the
// request never went through Middleware.
func Logger(ctx context.Context, fallback logging.Logger) logging.Logger {
	if rc, ok := FromContext(ctx); ok && rc.Logger != nil {
		return rc.Logger
	}
	if fallback == nil {
		return logging.NewNopLogger()
	}
	return fallback
}

// IDGenerator produces request ids. Ids need only be unique within the process.
type IDGenerator func() (string, error)

// NewUUID generates a random UUID request id.
func NewUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate request id: %w", err)
	}
	return id.String(), nil
}

// Options configures Middleware.
type Options struct {
	// Header is the inbound correlation header. Defaults to DefaultHeader.
	Header string
	// Logger is the process logger the request logger derives from.
	Logger logging.Logger
	// NewID generates request ids. Defaults to NewUUID.
	NewID IDGenerator
	// OnFailure answers the request when the context cannot be attached.
	OnFailure func(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware attaches a RequestContext to every request.
//
// Panics if opts.Logger or opts.OnFailure is nil.
func Middleware(opts Options) func(http.Handler) http.Handler {
	if opts.Logger == nil {
		panic("correlation: logger cannot be nil")
	}
	if opts.OnFailure == nil {
		panic("correlation: failure handler cannot be nil")
	}
	if opts.Header == "" {
		opts.Header = DefaultHeader
	}
	if opts.NewID == nil {
		opts.NewID = NewUUID
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID, err := opts.NewID()
			if err != nil || requestID == "" {
				if err == nil {
					err = fmt.Errorf("generate request id: empty id")
				}
				opts.Logger.Error(r.Context(), err, "Failed to attach request context",
					"method", r.Method, "path", r.URL.Path)
				opts.OnFailure(w, r, err)
				return
			}

			correlationID := sanitizeCorrelationID(r.Header.Get(opts.Header))
			if correlationID == "" {
				correlationID = requestID
			}

			rc := &RequestContext{
				RequestID:     requestID,
				CorrelationID: correlationID,
				Logger: opts.Logger.With(
					"request_id", requestID,
					"correlation_id", correlationID,
				),
			}

			w.Header().Set(RequestIDHeader, requestID)
			w.Header().Set(opts.Header, correlationID)

			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), rc)))
		})
	}
}

// sanitizeCorrelationID drops values that would corrupt log records.
func sanitizeCorrelationID(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxCorrelationIDLength {
		return ""
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return ""
		}
	}
	return value
}
