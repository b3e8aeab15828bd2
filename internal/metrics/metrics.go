// Package metrics exposes Prometheus collectors for the gateway's HTTP
// surface and content providers.
//
// A nil *Metrics is valid and records nothing, so callers never branch on
// whether metrics are enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/apigateway/internal/response"
)

const (
	namespace = "apigateway"

	// unmatchedRoute labels requests no route pattern matched.
	unmatchedRoute = "unmatched"
)

// Metrics holds the gateway's collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec   // route, method, status
	requestDuration *prometheus.HistogramVec // route, method
	redirectsTotal  *prometheus.CounterVec   // family

	providerOpsTotal *prometheus.CounterVec   // provider, operation, outcome
	providerDuration *prometheus.HistogramVec // provider, operation

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg disables
// metrics and returns a nil *Metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests answered by the gateway",
		}, []string{"route", "method", "status"}),

		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		redirectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "legacy_redirects_total",
			Help:      "Total number of legacy path redirects to versioned routes",
		}, []string{"family"}),

		providerOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "provider_operations_total",
			Help:      "Total number of content provider operations",
		}, []string{"provider", "operation", "outcome"}), // outcome: ok, not_found, error

		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "provider_operation_duration_seconds",
			Help:      "Content provider operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider", "operation"}),
	}

	collectors := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.redirectsTotal,
		m.providerOpsTotal,
		m.providerDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m, nil
}

// Middleware records request count and latency by route pattern. It must run
// inside the chi router so the matched pattern is available once the request
// completes.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := response.StatusOf(w)
		if status == 0 {
			status = http.StatusOK
		}

		m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.requestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

// RecordRedirect counts a legacy redirect for a route family.
func (m *Metrics) RecordRedirect(family string) {
	if m == nil {
		return
	}
	m.redirectsTotal.WithLabelValues(family).Inc()
}

// Handler serves the exposition format for the registry metrics were created
// with, falling back to the default gatherer.
func (m *Metrics) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) recordProviderOp(provider, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerOpsTotal.WithLabelValues(provider, operation, outcome).Inc()
	m.providerDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}
