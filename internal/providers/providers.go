// Package providers selects and constructs the content provider named in the
// configuration.
package providers

import (
	"context"
	"fmt"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/content"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/providers/cms"
	"github.com/conneroisu/apigateway/internal/providers/file"
	"github.com/conneroisu/apigateway/internal/providers/postgres"
)

// New builds the provider selected by cfg.Provider. An empty name selects the
// static fallback.
func New(ctx context.Context, cfg config.ContentConfig, logger logging.Logger) (content.Provider, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	name := content.ProviderName(cfg.Provider)
	if name == "" {
		name = content.ProviderStatic
	}

	var (
		provider content.Provider
		err      error
	)
	switch name {
	case content.ProviderStatic:
		provider = content.NewStaticProvider()
	case content.ProviderCMS:
		provider, err = cms.New(cms.Options{
			BaseURL: cfg.CMS.BaseURL,
			Token:   cfg.CMS.Token,
			Timeout: cfg.CMS.Timeout,
		}, logger)
	case content.ProviderFile:
		provider, err = file.New(file.Options{
			Dir:   cfg.File.Dir,
			Watch: cfg.File.Watch,
		}, logger)
	case content.ProviderPostgres:
		provider, err = postgres.New(ctx, postgres.Options{
			DSN:      cfg.Postgres.DSN,
			MaxConns: cfg.Postgres.MaxConns,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown content provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s provider: %w", name, err)
	}

	logger.Info(ctx, "Content provider bound", "provider", provider.Name())
	return provider, nil
}
