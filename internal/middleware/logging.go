package middleware

import (
	"net/http"
	"time"

	"github.com/conneroisu/apigateway/internal/correlation"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/response"
)

// AccessLog logs one line per completed request with the request logger.
func AccessLog(fallback logging.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			status := response.StatusOf(w)
			if status == 0 {
				status = http.StatusOK
			}

			logger := correlation.Logger(r.Context(), fallback)
			fields := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, "query", logging.SanitizeForLog(r.URL.RawQuery))
			}
			if status >= http.StatusInternalServerError {
				logger.Warn(r.Context(), nil, "Request completed", fields...)
				return
			}
			logger.Info(r.Context(), "Request completed", fields...)
		})
	}
}
