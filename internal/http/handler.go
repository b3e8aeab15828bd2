package http

import (
	"errors"
	"net/http"

	"github.com/conneroisu/apigateway/internal/correlation"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/response"
)

// HandlerFunc is a route handler that reports failure by returning an error.
// It either writes a response or returns an error, never both.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn to http.HandlerFunc. It is the one place handler failures
// are normalized to a GatewayError, logged and sent.
func Handle(fallback logging.Logger, fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		gwErr := gwerrors.ToGatewayError(err)
		logger := correlation.Logger(r.Context(), fallback)

		if gwErr.Code == gwerrors.CodeInternal {
			logger.Error(r.Context(), err, "Request failed",
				"method", r.Method,
				"path", r.URL.Path,
				"code", gwErr.Code,
				"details", gwErr.Details)
		} else {
			logger.Debug(r.Context(), "Request rejected",
				"method", r.Method,
				"path", r.URL.Path,
				"code", gwErr.Code,
				"status", gwErr.StatusCode)
		}

		if response.Written(w) {
			logger.Warn(r.Context(), err, "Handler failed after the response started")
			return
		}
		if sendErr := response.SendError(w, r, gwErr); sendErr != nil && !errors.Is(sendErr, response.ErrAlreadySent) {
			logger.Debug(r.Context(), "Error response not delivered", "error", sendErr.Error())
		}
	}
}
