package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Run the API gateway",
	Long: `Run the API gateway until interrupted.

SIGINT or SIGTERM stops accepting connections and waits up to
server.shutdown_timeout for in-flight requests before exiting.

Examples:
  apigateway serve                        # Serve on localhost:8080
  apigateway serve --port 3000 --host 0.0.0.0
  apigateway serve --serverless           # Accept /api/v1/... paths
  apigateway serve --provider file        # Serve content from YAML files`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServerFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, server.Dependencies{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting API gateway at http://%s (content: %s)\n",
		cfg.Server.Addr(), srv.ProviderName())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
