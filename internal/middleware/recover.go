package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/conneroisu/apigateway/internal/correlation"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/response"
)

// Recover turns a panic into an INTERNAL_SERVER_ERROR envelope. When the
// response has already started the panic is only logged.
func Recover(fallback logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger := correlation.Logger(r.Context(), fallback)
				err, ok := rec.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", rec)
				}
				logger.Error(r.Context(), err, "Recovered from panic",
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()))

				if response.Written(w) {
					return
				}
				if sendErr := response.SendError(w, r, gwerrors.ToGatewayError(rec)); sendErr != nil &&
					!errors.Is(sendErr, response.ErrAlreadySent) {
					logger.Warn(r.Context(), sendErr, "Failed to send panic response")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
