// Package middleware assembles the gateway's HTTP middleware stack.
//
// The standard stack, outer to inner:
//
//  1. URL normalization (serverless hosts only)
//  2. Correlation context (request id, correlation id, request logger)
//  3. Error detail exposure (when configured)
//  4. Response tracking
//  5. Panic recovery
//  6. Access logging
//  7. Metrics
//  8. CORS
//  9. Security headers
//
// The chain is installed inside the chi router so the metrics middleware can
// read the matched route pattern.
package middleware

import (
	"net/http"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/correlation"
	gwerrors "github.com/conneroisu/apigateway/internal/errors"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/metrics"
	"github.com/conneroisu/apigateway/internal/response"
	"github.com/conneroisu/apigateway/internal/urlnorm"
)

// MiddlewareChain manages the ordered middleware stack.
//
// Middlewares run in the order they were added: the first added is the
// outermost wrapper.
type MiddlewareChain struct {
	config      *config.Config
	logger      logging.Logger
	metrics     *metrics.Metrics
	newID       correlation.IDGenerator
	middlewares []Middleware
}

// Middleware represents a single middleware function
type Middleware func(http.Handler) http.Handler

// MiddlewareDependencies contains all dependencies needed for middleware construction
type MiddlewareDependencies struct {
	Config  *config.Config
	Logger  logging.Logger
	Metrics *metrics.Metrics        // optional
	NewID   correlation.IDGenerator // optional, defaults to random UUIDs
}

// NewMiddlewareChain builds the standard stack.
//
// Panics if Config or Logger is nil.
func NewMiddlewareChain(deps MiddlewareDependencies) *MiddlewareChain {
	if deps.Config == nil {
		panic("MiddlewareChain: config cannot be nil")
	}
	if deps.Logger == nil {
		panic("MiddlewareChain: logger cannot be nil")
	}

	chain := &MiddlewareChain{
		config:      deps.Config,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		newID:       deps.NewID,
		middlewares: make([]Middleware, 0, 9),
	}
	chain.buildDefaultStack()

	return chain
}

func (mc *MiddlewareChain) buildDefaultStack() {
	cfg := mc.config

	if cfg.Serverless.Enabled {
		mc.AddMiddleware(urlnorm.Middleware(cfg.Serverless.MountPrefix))
	}

	mc.AddMiddleware(correlation.Middleware(correlation.Options{
		Header:    cfg.Gateway.CorrelationHeader,
		Logger:    mc.logger,
		NewID:     mc.newID,
		OnFailure: sendFailure,
	}))

	if cfg.Server.ExposeErrorDetails {
		mc.AddMiddleware(response.ExposeDetails)
	}

	mc.AddMiddleware(response.Track)
	mc.AddMiddleware(Recover(mc.logger))
	mc.AddMiddleware(AccessLog(mc.logger))
	mc.AddMiddleware(mc.metrics.Middleware)
	mc.AddMiddleware(CORS(CORSConfig{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		Development:       cfg.Server.IsDevelopment(),
		CorrelationHeader: cfg.Gateway.CorrelationHeader,
	}))
	mc.AddMiddleware(SecurityHeaders(cfg.Server.Environment == "production"))
}

// sendFailure answers a request whose context could not be attached.
func sendFailure(w http.ResponseWriter, r *http.Request, err error) {
	_ = response.SendError(w, r, gwerrors.ToGatewayError(err))
}

// AddMiddleware appends a middleware inside the existing ones
func (mc *MiddlewareChain) AddMiddleware(middleware Middleware) {
	mc.middlewares = append(mc.middlewares, middleware)
}

// Middlewares returns the stack, outermost first.
func (mc *MiddlewareChain) Middlewares() []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, len(mc.middlewares))
	for i, m := range mc.middlewares {
		out[i] = m
	}
	return out
}

// GetMiddlewareCount returns the number of middlewares in the chain
func (mc *MiddlewareChain) GetMiddlewareCount() int {
	return len(mc.middlewares)
}
