// Package server assembles the gateway: logger, metrics, content provider,
// middleware chain and router, and coordinates their shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/content"
	gatewayhttp "github.com/conneroisu/apigateway/internal/http"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/metrics"
	"github.com/conneroisu/apigateway/internal/middleware"
	"github.com/conneroisu/apigateway/internal/providers"
)

// Server owns every long-lived gateway component.
//
// Invariants:
// - config, logger, content and router are never nil after construction
// - shutdown happens exactly once via shutdownOnce
type Server struct {
	config   *config.Config
	logger   logging.Logger
	metrics  *metrics.Metrics
	provider content.Provider
	content  *content.Service
	router   *gatewayhttp.Router

	shutdownOnce sync.Once
	shutdownErr  error
}

// Dependencies contains the collaborators New would otherwise build itself.
// Every field except Config is optional.
type Dependencies struct {
	Config   *config.Config
	Logger   logging.Logger
	Provider content.Provider

	// Registerer receives the gateway collectors. Nil uses a fresh registry.
	Registerer prometheus.Registerer
}

// New builds the gateway from deps.
//
// The content provider named in the configuration is constructed unless
// deps.Provider is set. Metrics are created only when enabled.
func New(ctx context.Context, deps Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config cannot be nil")
	}
	cfg := deps.Config

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.With("service", cfg.Gateway.ServiceName)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg := deps.Registerer
		if reg == nil {
			reg = prometheus.NewRegistry()
		}
		var err error
		if m, err = metrics.New(reg); err != nil {
			return nil, fmt.Errorf("server: register metrics: %w", err)
		}
	}

	provider := deps.Provider
	if provider == nil {
		var err error
		if provider, err = providers.New(ctx, cfg.Content, logger); err != nil {
			return nil, fmt.Errorf("server: content provider: %w", err)
		}
	}
	instrumented := metrics.InstrumentProvider(provider, m)
	contentService := content.NewService(instrumented)

	chain := middleware.NewMiddlewareChain(middleware.MiddlewareDependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	})
	router := gatewayhttp.NewRouter(cfg, NewHandlers(cfg.Gateway.ServiceName, contentService), chain, logger, m)
	if m != nil {
		router.RegisterCustomRoute(http.MethodGet, cfg.Metrics.Path, m.Handler())
	}

	logger.Info(ctx, "Gateway assembled",
		"provider", contentService.ProviderName().String(),
		"api_version", cfg.Gateway.APIVersion,
		"serverless", cfg.Serverless.Enabled,
		"metrics", m != nil,
		"middlewares", chain.GetMiddlewareCount())

	return &Server{
		config:   cfg,
		logger:   logger,
		metrics:  m,
		provider: instrumented,
		content:  contentService,
		router:   router,
	}, nil
}

// Start serves until ctx is cancelled, then shuts the gateway down.
func (s *Server) Start(ctx context.Context) error {
	err := s.router.Start(ctx)
	if shutdownErr := s.Shutdown(context.Background()); err == nil {
		err = shutdownErr
	}
	return err
}

// Shutdown stops the router and releases the content provider. It is safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "Shutting down gateway")

		var errs []error
		if err := s.router.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if closer, ok := s.provider.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close content provider: %w", err))
			}
		}
		s.shutdownErr = errors.Join(errs...)

		if s.shutdownErr != nil {
			s.logger.Error(ctx, s.shutdownErr, "Gateway shut down with errors")
			return
		}
		s.logger.Info(ctx, "Gateway shut down successfully")
	})

	return s.shutdownErr
}

// Handler returns the assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router.Handler()
}

// Routes returns the registered route table.
func (s *Server) Routes() []gatewayhttp.Route {
	return s.router.Routes()
}

// Addr returns the address the gateway listens on.
func (s *Server) Addr() string {
	return s.router.GetAddr()
}

// ProviderName returns the bound content provider's name.
func (s *Server) ProviderName() content.ProviderName {
	return s.content.ProviderName()
}
