package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/correlation"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/response"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.Environment = "production"
	cfg.Server.AllowedOrigins = []string{"https://conneroh.com"}
	return cfg
}

func jsonLogger() (logging.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelDebug, Format: "json", Output: &buf}), &buf
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewMiddlewareChainPanics(t *testing.T) {
	assert.Panics(t, func() { NewMiddlewareChain(MiddlewareDependencies{Logger: logging.NewNopLogger()}) })
	assert.Panics(t, func() { NewMiddlewareChain(MiddlewareDependencies{Config: testConfig()}) })
}

func TestChainComposition(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		expected int
	}{
		{"standard", func(c *config.Config) {}, 7},
		{"serverless", func(c *config.Config) { c.Serverless.Enabled = true }, 8},
		{"serverless with details", func(c *config.Config) {
			c.Serverless.Enabled = true
			c.Server.ExposeErrorDetails = true
		}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			chain := NewMiddlewareChain(MiddlewareDependencies{Config: cfg, Logger: logging.NewNopLogger()})
			assert.Equal(t, tt.expected, chain.GetMiddlewareCount())
			assert.Len(t, chain.Middlewares(), tt.expected)
		})
	}
}

func wrap(chain *MiddlewareChain, handler http.Handler) http.Handler {
	return chi.Chain(chain.Middlewares()...).Handler(handler)
}

func TestMiddlewaresOrder(t *testing.T) {
	chain := &MiddlewareChain{}
	var order []string
	for _, name := range []string{"outer", "middle", "inner"} {
		name := name
		chain.AddMiddleware(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		})
	}

	handler := wrap(chain, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "middle", "inner", "handler"}, order)
}

func TestChainEndToEnd(t *testing.T) {
	cfg := testConfig()
	cfg.Serverless.Enabled = true
	logger, buf := jsonLogger()

	chain := NewMiddlewareChain(MiddlewareDependencies{
		Config: cfg,
		Logger: logger,
		NewID:  func() (string, error) { return "req-1", nil },
	})

	var seenPath string
	var seenCorrelation string
	handler := wrap(chain, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenPath = r.URL.RequestURI()
		rc, ok := correlation.FromContext(r.Context())
		require.True(t, ok)
		seenCorrelation = rc.CorrelationID
		_ = response.SendSuccess(w, r, map[string]bool{"ok": true})
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status?x=1", nil)
	req.Header.Set("X-Correlation-ID", "corr-9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/status?x=1", seenPath)
	assert.Equal(t, "corr-9", seenCorrelation)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	logs := buf.String()
	assert.Contains(t, logs, `"msg":"Request completed"`)
	assert.Contains(t, logs, `"request_id":"req-1"`)
	assert.Contains(t, logs, `"correlation_id":"corr-9"`)
}

func TestChainIDFailure(t *testing.T) {
	chain := NewMiddlewareChain(MiddlewareDependencies{
		Config: testConfig(),
		Logger: logging.NewNopLogger(),
		NewID:  func() (string, error) { return "", errors.New("entropy exhausted") },
	})

	called := false
	handler := wrap(chain, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
	_, hasDetails := body["details"]
	assert.False(t, hasDetails)
}

func TestRecover(t *testing.T) {
	tests := []struct {
		name        string
		expose      bool
		panicValue  interface{}
		wantDetails bool
	}{
		{"error value hidden", false, errors.New("nil map write"), false},
		{"error value exposed", true, errors.New("nil map write"), true},
		{"string value", true, "kaboom", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := jsonLogger()
			var h http.Handler = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic(tt.panicValue)
			})
			h = response.Track(Recover(logger)(h))
			if tt.expose {
				h = response.ExposeDetails(h)
			}

			rec := httptest.NewRecorder()
			require.NotPanics(t, func() {
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
			})

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, "INTERNAL_SERVER_ERROR", body["code"])
			_, hasDetails := body["details"]
			assert.Equal(t, tt.wantDetails, hasDetails)
			assert.Contains(t, buf.String(), "Recovered from panic")
		})
	}
}

func TestRecoverAfterWrite(t *testing.T) {
	h := response.Track(Recover(logging.NewNopLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = response.SendSuccess(w, r, "partial")
		panic("late failure")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "\n"), "exactly one envelope")
}

func TestRecoverRepanicsAbort(t *testing.T) {
	h := Recover(logging.NewNopLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.Panics(t, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestAccessLog(t *testing.T) {
	logger, buf := jsonLogger()
	h := response.Track(AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/content/pages", nil))

	record := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "/v1/content/pages", record["path"])
	assert.Equal(t, float64(http.StatusBadGateway), record["status"])
	_, hasQuery := record["query"]
	assert.False(t, hasQuery)
}

func TestAccessLogRedactsQuery(t *testing.T) {
	logger, buf := jsonLogger()
	h := response.Track(AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/status?token=abc123", nil))

	record := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "[REDACTED]", record["query"])
	assert.NotContains(t, buf.String(), "abc123")
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name        string
		development bool
		method      string
		origin      string
		preflight   bool
		wantOrigin  string
		wantStatus  int
	}{
		{"no origin", false, http.MethodGet, "", false, "", http.StatusOK},
		{"allowed origin", false, http.MethodGet, "https://conneroh.com", false, "https://conneroh.com", http.StatusOK},
		{"unknown origin in production", false, http.MethodGet, "https://evil.test", false, "", http.StatusOK},
		{"unknown origin in development", true, http.MethodGet, "https://evil.test", false, "*", http.StatusOK},
		{"preflight", false, http.MethodOptions, "https://conneroh.com", true, "https://conneroh.com", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := CORS(CORSConfig{
				AllowedOrigins: []string{"https://conneroh.com"},
				Development:    tt.development,
			})(next)

			req := httptest.NewRequest(tt.method, "/v1/status", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantOrigin != "" {
				assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Correlation-ID")
				assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Request-ID")
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	rec := httptest.NewRecorder()
	SecurityHeaders(false)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	SecurityHeaders(true)(next).ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}
