// Package http owns the gateway's route table and HTTP server lifecycle.
//
// Every route is registered under the active API version ("/v1/status").
// Route families that predate versioning also answer on their unversioned
// path with a 308 redirect to the versioned one, query string preserved.
// Anything else answers 404 ROUTE_NOT_FOUND.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/correlation"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/metrics"
)

// Router handles HTTP server lifecycle and route registration.
//
// Invariants:
// - config, mux, handlers and logger are never nil after construction
// - httpServer is nil only before Start() or after Shutdown()
// - isShutdown and httpServer are protected by serverMutex
type Router struct {
	config  *config.Config
	logger  logging.Logger
	metrics *metrics.Metrics
	mux     *chi.Mux

	serverMutex sync.RWMutex
	httpServer  *http.Server
	listener    net.Listener
	isShutdown  bool

	routesMutex sync.RWMutex
	routes      []Route

	handlers Handlers
}

// Handlers provides the gateway's route handlers.
type Handlers interface {
	HandleStatus(w http.ResponseWriter, r *http.Request) error
	HandleMessage(w http.ResponseWriter, r *http.Request) error
	HandleArticles(w http.ResponseWriter, r *http.Request) error
	HandleArticle(w http.ResponseWriter, r *http.Request) error
	HandlePages(w http.ResponseWriter, r *http.Request) error
	HandlePage(w http.ResponseWriter, r *http.Request) error
}

// MiddlewareProvider supplies the middleware stack, outermost first.
type MiddlewareProvider interface {
	Middlewares() []func(http.Handler) http.Handler
}

// NewRouter creates the router, installs the middleware stack and registers
// every gateway route.
//
// Panics if any required dependency is nil or the port is out of range.
// metrics may be nil.
func NewRouter(
	config *config.Config,
	handlers Handlers,
	middlewareProvider MiddlewareProvider,
	logger logging.Logger,
	m *metrics.Metrics,
) *Router {
	if config == nil {
		panic("Router: config cannot be nil")
	}
	if handlers == nil {
		panic("Router: handlers cannot be nil")
	}
	if middlewareProvider == nil {
		panic("Router: middlewareProvider cannot be nil")
	}
	if logger == nil {
		panic("Router: logger cannot be nil")
	}

	// Port 0 lets the system pick a port
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		panic(fmt.Sprintf("Router: invalid port %d, must be 0-65535", config.Server.Port))
	}

	router := &Router{
		config:   config,
		logger:   logger.WithComponent("router"),
		metrics:  m,
		mux:      chi.NewRouter(),
		handlers: handlers,
	}

	// chi requires middlewares before any route
	router.mux.Use(middlewareProvider.Middlewares()...)

	notFound := Handle(router.logger, func(w http.ResponseWriter, r *http.Request) error {
		return gwerrors.NewRouteNotFound(r.Method, r.URL.Path)
	})
	router.mux.NotFound(notFound)
	router.mux.MethodNotAllowed(notFound)

	router.registerRoutes()

	return router
}

// registerRoutes registers all gateway routes
func (r *Router) registerRoutes() {
	r.Versioned("status", http.MethodGet, "/status", r.handlers.HandleStatus, true)
	r.Versioned("message", http.MethodGet, "/message/{name}", r.handlers.HandleMessage, true)

	r.Versioned("content/articles", http.MethodGet, "/content/articles", r.handlers.HandleArticles, false)
	r.Versioned("content/articles", http.MethodGet, "/content/articles/{slug}", r.handlers.HandleArticle, false)
	r.Versioned("content/pages", http.MethodGet, "/content/pages", r.handlers.HandlePages, false)
	r.Versioned("content/pages", http.MethodGet, "/content/pages/{slug}", r.handlers.HandlePage, false)
}

// VersionPrefix returns the active version's path prefix, e.g. "/v1".
func (r *Router) VersionPrefix() string {
	return "/" + r.config.Gateway.APIVersion
}

// Versioned registers handler at the versioned form of pattern. With legacy
// set, the unversioned pattern answers 308 to the versioned path and runs no
// handler logic.
func (r *Router) Versioned(family, method, pattern string, handler HandlerFunc, legacy bool) {
	versioned := r.VersionPrefix() + pattern
	r.mux.Method(method, versioned, Handle(r.logger, handler))
	r.addRoute(Route{Method: method, Path: versioned, Family: family, Kind: RouteKindVersioned})

	if legacy {
		r.mux.Method(method, pattern, r.redirect(family))
		r.addRoute(Route{
			Method: method,
			Path:   pattern,
			Family: family,
			Kind:   RouteKindLegacy,
			Target: versioned,
		})
	}
}

// redirect answers a legacy path with a permanent redirect to its versioned
// equivalent.
func (r *Router) redirect(family string) http.HandlerFunc {
	prefix := r.VersionPrefix()

	return func(w http.ResponseWriter, req *http.Request) {
		target := prefix + req.URL.EscapedPath()
		if req.URL.RawQuery != "" {
			target += "?" + req.URL.RawQuery
		}

		correlation.Logger(req.Context(), r.logger).Info(req.Context(), "Redirecting legacy route",
			"family", family,
			"from", req.URL.RequestURI(),
			"to", target)
		r.metrics.RecordRedirect(family)

		w.Header().Set("Location", target)
		w.WriteHeader(http.StatusPermanentRedirect)
	}
}

// RegisterCustomRoute adds an unversioned infrastructure route such as the
// metrics endpoint. Its response is not enveloped.
func (r *Router) RegisterCustomRoute(method, pattern string, handler http.Handler) {
	r.mux.Method(method, pattern, handler)
	r.addRoute(Route{Method: method, Path: pattern, Family: "infra", Kind: RouteKindInfra})
}

func (r *Router) addRoute(route Route) {
	r.routesMutex.Lock()
	defer r.routesMutex.Unlock()
	r.routes = append(r.routes, route)
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []Route {
	r.routesMutex.RLock()
	defer r.routesMutex.RUnlock()
	out := make([]Route, len(r.routes))
	copy(out, r.routes)
	return out
}

// Handler returns the fully assembled handler, middlewares included.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// Start listens on the configured address and serves until ctx is cancelled
// or the server fails. Cancellation triggers a graceful shutdown bounded by
// server.shutdown_timeout.
func (r *Router) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Router.Start: context cannot be nil")
	}

	r.serverMutex.Lock()
	if r.isShutdown {
		r.serverMutex.Unlock()
		return fmt.Errorf("Router.Start: router has been shut down")
	}
	if r.httpServer != nil {
		r.serverMutex.Unlock()
		return fmt.Errorf("Router.Start: router already started")
	}

	listener, err := net.Listen("tcp", r.config.Server.Addr())
	if err != nil {
		r.serverMutex.Unlock()
		return fmt.Errorf("Router: listen on %s: %w", r.config.Server.Addr(), err)
	}
	// Requests outlive ctx so Shutdown can drain them. Calls still running when
	// the drain deadline passes are cancelled by closing their connections.
	server := &http.Server{
		Handler:           r.mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	r.httpServer = server
	r.listener = listener
	r.serverMutex.Unlock()

	r.logger.Info(ctx, "Gateway listening", "addr", listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("Router: server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		// Use background context to avoid cancellation during shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.config.Server.ShutdownTimeout)
		defer cancel()
		return r.Shutdown(shutdownCtx)

	case err := <-errChan:
		return err
	}
}

// Shutdown gracefully shuts down the HTTP server. It is idempotent.
func (r *Router) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("Router.Shutdown: context cannot be nil")
	}

	r.serverMutex.Lock()
	defer r.serverMutex.Unlock()

	if r.isShutdown {
		return nil
	}
	r.isShutdown = true

	if r.httpServer != nil {
		if err := r.httpServer.Shutdown(ctx); err != nil {
			_ = r.httpServer.Close()
			return fmt.Errorf("Router.Shutdown: server shutdown failed: %w", err)
		}
	}

	return nil
}

// GetAddr returns the listening address once started, or the configured one.
func (r *Router) GetAddr() string {
	r.serverMutex.RLock()
	defer r.serverMutex.RUnlock()

	if r.listener != nil {
		return r.listener.Addr().String()
	}

	return r.config.Server.Addr()
}

// IsShutdown returns whether the router has been shut down
func (r *Router) IsShutdown() bool {
	r.serverMutex.RLock()
	defer r.serverMutex.RUnlock()
	return r.isShutdown
}
