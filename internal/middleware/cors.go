package middleware

import (
	"net/http"
	"strings"

	"github.com/conneroisu/apigateway/internal/correlation"
	"github.com/conneroisu/apigateway/internal/validation"
)

// CORSConfig configures CORS.
type CORSConfig struct {
	AllowedOrigins    []string
	Development       bool
	CorrelationHeader string
}

// CORS answers preflight requests and sets CORS headers for allowed origins.
// In development an unknown origin gets a wildcard; otherwise it gets no CORS
// headers at all.
func CORS(cfg CORSConfig) Middleware {
	header := cfg.CorrelationHeader
	if header == "" {
		header = correlation.DefaultHeader
	}
	allowHeaders := strings.Join([]string{"Content-Type", header}, ", ")
	exposeHeaders := strings.Join([]string{correlation.RequestIDHeader, header}, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Add("Vary", "Origin")

			switch {
			case validation.ValidateOrigin(origin, cfg.AllowedOrigins) == nil:
				h.Set("Access-Control-Allow-Origin", origin)
			case cfg.Development:
				h.Set("Access-Control-Allow-Origin", "*")
			default:
				// Production default: no CORS headers, the browser blocks the read
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Expose-Headers", exposeHeaders)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
