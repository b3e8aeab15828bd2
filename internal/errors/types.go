// Package errors defines the gateway's single failure type and the funnel that
// converts arbitrary failures into it.
//
// Handlers and providers may fail in any way they like. Before a response is
// written, every failure passes through ToGatewayError so that clients only
// ever observe a GatewayError carrying a code from the closed registry in
// codes.go.
package errors

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"
)

// GatewayError is a normalized failure. It is immutable once constructed; the
// With* helpers return modified copies.
type GatewayError struct {
	StatusCode int
	Code       Code
	Message    string
	Details    map[string]any
	Cause      error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison. Two gateway errors match when their codes do.
func (e *GatewayError) Is(target error) bool {
	var t *GatewayError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}

	return false
}

// HasDetails reports whether the error carries a diagnostic payload.
func (e *GatewayError) HasDetails() bool {
	return len(e.Details) > 0
}

// WithDetails returns a copy of e with key set in its details.
func (e *GatewayError) WithDetails(key string, value any) *GatewayError {
	clone := *e
	clone.Details = make(map[string]any, len(e.Details)+1)
	maps.Copy(clone.Details, e.Details)
	clone.Details[key] = value

	return &clone
}

// WithCause returns a copy of e wrapping cause.
func (e *GatewayError) WithCause(cause error) *GatewayError {
	clone := *e
	clone.Cause = cause

	return &clone
}

// Error creation functions

// New creates a gateway error. A code outside the registry is replaced by
// CodeInternal, and a status outside 400-599 is replaced by the code's default.
func New(status int, code Code, message string) *GatewayError {
	if !code.Valid() {
		code = CodeInternal
		status = http.StatusInternalServerError
	}
	if status < 400 || status > 599 {
		status = code.Status()
	}

	return &GatewayError{
		StatusCode: status,
		Code:       code,
		Message:    message,
	}
}

// NewRouteNotFound creates the catch-all error for unmatched requests.
func NewRouteNotFound(method, path string) *GatewayError {
	return New(http.StatusNotFound, CodeRouteNotFound,
		fmt.Sprintf("Route %s %s not found", method, path))
}

// NewContentNotFound creates a not-found error for a missing article or page.
func NewContentNotFound(kind, slug string) *GatewayError {
	return New(http.StatusNotFound, CodeContentNotFound,
		fmt.Sprintf("%s %q not found", kind, slug)).
		WithDetails("slug", slug)
}

// NewValidation creates a validation error. details may be nil.
func NewValidation(message string, details map[string]any) *GatewayError {
	err := New(http.StatusBadRequest, CodeValidationFailed, message)
	if len(details) > 0 {
		err.Details = maps.Clone(details)
	}

	return err
}

// NewInternal creates an internal error wrapping cause.
func NewInternal(cause error) *GatewayError {
	err := New(http.StatusInternalServerError, CodeInternal, internalMessage)
	err.Cause = cause

	return err
}

// IsCode reports whether err is a GatewayError with the given code.
func IsCode(err error, code Code) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Code == code
	}

	return false
}
