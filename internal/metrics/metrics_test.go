package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/apigateway/internal/content"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
	"github.com/conneroisu/apigateway/internal/response"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m, reg
}

func TestNewWithNilRegistry(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// nil metrics are inert
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	assert.NotNil(t, m.Middleware(next))
	assert.NotPanics(t, func() { m.RecordRedirect("status") })
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	m, _ := newTestMetrics(t)

	mux := chi.NewRouter()
	mux.Use(m.Middleware)
	mux.Get("/v1/content/articles/{slug}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "slug") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	handler := response.Track(mux)

	for _, path := range []string{"/v1/content/articles/a", "/v1/content/articles/b", "/v1/content/articles/missing", "/nope"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/v1/content/articles/{slug}", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("/v1/content/articles/{slug}", "GET", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues(unmatchedRoute, "GET", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.requestDuration))
}

func TestRecordRedirect(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordRedirect("status")
	m.RecordRedirect("status")
	m.RecordRedirect("message")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.redirectsTotal.WithLabelValues("status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.redirectsTotal.WithLabelValues("message")))
}

func TestHandlerServesRegistry(t *testing.T) {
	m, _ := newTestMetrics(t)
	m.RecordRedirect("status")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(string(body), `apigateway_http_legacy_redirects_total{family="status"} 1`))
}

// stubProvider returns canned results.
type stubProvider struct {
	content.StaticProvider
	err  error
	page *content.Page
}

func (s stubProvider) Name() content.ProviderName { return content.ProviderCMS }

func (s stubProvider) GetPages(context.Context) ([]content.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []content.Page{}, nil
}

func (s stubProvider) GetPageBySlug(context.Context, string) (*content.Page, error) {
	return s.page, s.err
}

type closingProvider struct {
	content.StaticProvider
	closed bool
}

func (c *closingProvider) Close() error {
	c.closed = true
	return nil
}

func TestInstrumentProvider(t *testing.T) {
	m, _ := newTestMetrics(t)
	ctx := context.Background()

	ok := InstrumentProvider(stubProvider{page: &content.Page{Slug: "about"}}, m)
	assert.Equal(t, content.ProviderCMS, ok.Name())

	_, err := ok.GetPages(ctx)
	require.NoError(t, err)
	page, err := ok.GetPageBySlug(ctx, "about")
	require.NoError(t, err)
	assert.Equal(t, "about", page.Slug)

	missing := InstrumentProvider(stubProvider{}, m)
	page, err = missing.GetPageBySlug(ctx, "contact")
	require.NoError(t, err)
	assert.Nil(t, page)

	boom := errors.New("upstream down")
	failing := InstrumentProvider(stubProvider{err: boom}, m)
	_, err = failing.GetPages(ctx)
	assert.Same(t, boom, err)

	// a provider may report a miss as a CONTENT_NOT_FOUND error
	notFound := gwerrors.NewContentNotFound("page", "contact")
	reporting := InstrumentProvider(stubProvider{err: notFound}, m)
	_, err = reporting.GetPageBySlug(ctx, "contact")
	assert.Same(t, notFound, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerOpsTotal.WithLabelValues("primary-cms", "get_pages", outcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerOpsTotal.WithLabelValues("primary-cms", "get_page_by_slug", outcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.providerOpsTotal.WithLabelValues("primary-cms", "get_page_by_slug", outcomeNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.providerOpsTotal.WithLabelValues("primary-cms", "get_pages", outcomeError)))
}

func TestInstrumentProviderPassthrough(t *testing.T) {
	p := content.NewStaticProvider()
	assert.Equal(t, content.Provider(p), InstrumentProvider(p, nil))
}

func TestInstrumentedProviderClose(t *testing.T) {
	m, _ := newTestMetrics(t)

	inner := &closingProvider{}
	wrapped := InstrumentProvider(inner, m)

	closer, ok := wrapped.(io.Closer)
	require.True(t, ok)
	require.NoError(t, closer.Close())
	assert.True(t, inner.closed)

	plain := InstrumentProvider(content.NewStaticProvider(), m).(io.Closer)
	assert.NoError(t, plain.Close())
}
