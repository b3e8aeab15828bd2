package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/apigateway/internal/config"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/metrics"
	"github.com/conneroisu/apigateway/internal/middleware"
	"github.com/conneroisu/apigateway/internal/response"
)

// stubHandlers answers every route with its own name so dispatch is observable.
type stubHandlers struct {
	calls int
}

func (h *stubHandlers) reply(name string) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		h.calls++
		return response.SendSuccess(w, r, map[string]string{
			"handler": name,
			"name":    chi.URLParam(r, "name"),
			"slug":    chi.URLParam(r, "slug"),
		})
	}
}

func (h *stubHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) error {
	return h.reply("status")(w, r)
}

func (h *stubHandlers) HandleMessage(w http.ResponseWriter, r *http.Request) error {
	return h.reply("message")(w, r)
}

func (h *stubHandlers) HandleArticles(w http.ResponseWriter, r *http.Request) error {
	return h.reply("articles")(w, r)
}

func (h *stubHandlers) HandleArticle(w http.ResponseWriter, r *http.Request) error {
	return h.reply("article")(w, r)
}

func (h *stubHandlers) HandlePages(w http.ResponseWriter, r *http.Request) error {
	return h.reply("pages")(w, r)
}

func (h *stubHandlers) HandlePage(w http.ResponseWriter, r *http.Request) error {
	return h.reply("page")(w, r)
}

type testRouter struct {
	router   *Router
	handlers *stubHandlers
	metrics  *metrics.Metrics
}

func newTestRouter(t *testing.T, mutate func(*config.Config)) *testRouter {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Port = 0
	if mutate != nil {
		mutate(cfg)
	}

	logger := logging.NewNopLogger()
	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	chain := middleware.NewMiddlewareChain(middleware.MiddlewareDependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	})
	handlers := &stubHandlers{}

	return &testRouter{
		router:   NewRouter(cfg, handlers, chain, logger, m),
		handlers: handlers,
		metrics:  m,
	}
}

func (tr *testRouter) do(method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tr.router.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.Error {
	t.Helper()
	var body response.Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestNewRouterPanics(t *testing.T) {
	cfg := config.Default()
	logger := logging.NewNopLogger()
	chain := middleware.NewMiddlewareChain(middleware.MiddlewareDependencies{Config: cfg, Logger: logger})

	assert.Panics(t, func() { NewRouter(nil, &stubHandlers{}, chain, logger, nil) })
	assert.Panics(t, func() { NewRouter(cfg, nil, chain, logger, nil) })
	assert.Panics(t, func() { NewRouter(cfg, &stubHandlers{}, nil, logger, nil) })
	assert.Panics(t, func() { NewRouter(cfg, &stubHandlers{}, chain, nil, nil) })

	bad := config.Default()
	bad.Server.Port = 70000
	assert.Panics(t, func() { NewRouter(bad, &stubHandlers{}, chain, logger, nil) })
}

func TestVersionedRoutes(t *testing.T) {
	tr := newTestRouter(t, nil)

	tests := []struct {
		target  string
		handler string
		param   string
		value   string
	}{
		{"/v1/status", "status", "", ""},
		{"/v1/message/ada", "message", "name", "ada"},
		{"/v1/content/articles", "articles", "", ""},
		{"/v1/content/articles/hello-world", "article", "slug", "hello-world"},
		{"/v1/content/pages", "pages", "", ""},
		{"/v1/content/pages/about", "page", "slug", "about"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := tr.do(http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			data := decodeData(t, rec)
			assert.Equal(t, tt.handler, data["handler"])
			if tt.param != "" {
				assert.Equal(t, tt.value, data[tt.param])
			}
		})
	}
}

func TestLegacyRedirects(t *testing.T) {
	tr := newTestRouter(t, nil)

	tests := []struct {
		target   string
		location string
	}{
		{"/status", "/v1/status"},
		{"/status?verbose=1&x=2", "/v1/status?verbose=1&x=2"},
		{"/message/ada", "/v1/message/ada"},
		{"/message/ada%20lovelace?lang=en", "/v1/message/ada%20lovelace?lang=en"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := tr.do(http.MethodGet, tt.target)
			assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
			assert.Equal(t, tt.location, rec.Header().Get("Location"))
		})
	}

	assert.Zero(t, tr.handlers.calls, "legacy routes never run handler logic")

	scrape := httptest.NewRecorder()
	tr.metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `apigateway_http_legacy_redirects_total{family="status"} 2`)
	assert.Contains(t, scrape.Body.String(), `apigateway_http_legacy_redirects_total{family="message"} 2`)
}

func TestContentRoutesAreVersionedOnly(t *testing.T) {
	tr := newTestRouter(t, nil)

	for _, target := range []string{"/content/articles", "/content/pages/about"} {
		rec := tr.do(http.MethodGet, target)
		assert.Equal(t, http.StatusNotFound, rec.Code, target)
		assert.Equal(t, gwerrors.CodeRouteNotFound, decodeError(t, rec).Code)
	}
}

func TestUnmatchedRoutes(t *testing.T) {
	tr := newTestRouter(t, nil)

	tests := []struct {
		method  string
		target  string
		message string
	}{
		{http.MethodGet, "/v1/nope", "Route GET /v1/nope not found"},
		{http.MethodGet, "/v2/status", "Route GET /v2/status not found"},
		{http.MethodPost, "/v1/status", "Route POST /v1/status not found"},
		{http.MethodDelete, "/status", "Route DELETE /status not found"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := tr.do(tt.method, tt.target)
			require.Equal(t, http.StatusNotFound, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, gwerrors.CodeRouteNotFound, body.Code)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestServerlessPrefixIsStripped(t *testing.T) {
	tr := newTestRouter(t, func(cfg *config.Config) {
		cfg.Serverless.Enabled = true
	})

	rec := tr.do(http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "status", decodeData(t, rec)["handler"])

	rec = tr.do(http.MethodGet, "/api/status")
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "/v1/status", rec.Header().Get("Location"))

	rec = tr.do(http.MethodGet, "/api/missing")
	assert.Equal(t, "Route GET /missing not found", decodeError(t, rec).Message)
}

func TestCustomAPIVersion(t *testing.T) {
	tr := newTestRouter(t, func(cfg *config.Config) {
		cfg.Gateway.APIVersion = "v2"
	})

	assert.Equal(t, http.StatusOK, tr.do(http.MethodGet, "/v2/status").Code)
	assert.Equal(t, http.StatusNotFound, tr.do(http.MethodGet, "/v1/status").Code)
	assert.Equal(t, "/v2/status", tr.do(http.MethodGet, "/status").Header().Get("Location"))
}

func TestRoutes(t *testing.T) {
	tr := newTestRouter(t, nil)
	tr.router.RegisterCustomRoute(http.MethodGet, "/metrics", http.NotFoundHandler())

	routes := tr.router.Routes()
	require.Len(t, routes, 9)

	assert.Equal(t, Route{Method: "GET", Path: "/v1/status", Family: "status", Kind: RouteKindVersioned}, routes[0])
	assert.Equal(t, Route{Method: "GET", Path: "/status", Family: "status", Kind: RouteKindLegacy, Target: "/v1/status"}, routes[1])
	assert.Equal(t, RouteKindInfra, routes[8].Kind)

	legacy := 0
	for _, route := range routes {
		if route.Kind == RouteKindLegacy {
			legacy++
		}
	}
	assert.Equal(t, 2, legacy)

	// Routes returns a copy
	routes[0].Path = "/mutated"
	assert.Equal(t, "/v1/status", tr.router.Routes()[0].Path)
}

func TestHandle(t *testing.T) {
	logger := logging.NewNopLogger()

	serve := func(fn HandlerFunc) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		response.Track(Handle(logger, fn)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/x", nil))
		return rec
	}

	t.Run("gateway error keeps its status", func(t *testing.T) {
		rec := serve(func(http.ResponseWriter, *http.Request) error {
			return gwerrors.NewValidation("bad slug", map[string]any{"field": "slug"})
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, gwerrors.CodeValidationFailed, body.Code)
		assert.Equal(t, "slug", body.Details["field"])
	})

	t.Run("plain error becomes internal without details", func(t *testing.T) {
		rec := serve(func(http.ResponseWriter, *http.Request) error {
			return errors.New("dial tcp: connection refused")
		})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeError(t, rec)
		assert.Equal(t, gwerrors.CodeInternal, body.Code)
		assert.Empty(t, body.Details)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})

	t.Run("error after a response was sent writes nothing more", func(t *testing.T) {
		rec := serve(func(w http.ResponseWriter, r *http.Request) error {
			require.NoError(t, response.SendSuccess(w, r, "ok"))
			return errors.New("late failure")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "INTERNAL_SERVER_ERROR")
	})
}

func TestStartAndShutdown(t *testing.T) {
	tr := newTestRouter(t, func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.ShutdownTimeout = time.Second
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.router.Start(ctx) }()

	var addr string
	require.Eventually(t, func() bool {
		addr = tr.router.GetAddr()
		return addr != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + addr + "/v1/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("router did not stop")
	}

	assert.True(t, tr.router.IsShutdown())
	assert.NoError(t, tr.router.Shutdown(context.Background()))
	assert.Error(t, tr.router.Start(context.Background()))
}

func TestShutdownCancelsStragglers(t *testing.T) {
	tr := newTestRouter(t, func(cfg *config.Config) {
		cfg.Server.Host = "127.0.0.1"
		cfg.Server.ShutdownTimeout = 100 * time.Millisecond
	})

	entered := make(chan struct{})
	cancelled := make(chan struct{})
	tr.router.RegisterCustomRoute(http.MethodGet, "/slow", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-r.Context().Done()
		close(cancelled)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.router.Start(ctx) }()

	var addr string
	require.Eventually(t, func() bool {
		addr = tr.router.GetAddr()
		return addr != "127.0.0.1:0"
	}, 2*time.Second, 10*time.Millisecond)

	go func() {
		resp, err := http.Get("http://" + addr + "/slow")
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("request never reached the handler")
	}

	cancel()
	select {
	case <-cancelled:
	case <-time.After(3 * time.Second):
		t.Fatal("in-flight request was not cancelled after the drain deadline")
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("router did not stop")
	}
	assert.True(t, tr.router.IsShutdown())
}
