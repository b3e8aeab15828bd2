package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/content"
	gatewayhttp "github.com/conneroisu/apigateway/internal/http"
	"github.com/conneroisu/apigateway/internal/logging"
	"github.com/conneroisu/apigateway/internal/server"
)

var routesFormat = newFormatValue("text", "text", "json")

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route table",
	Long: `Print every route the gateway registers for the current configuration,
including legacy paths and the versioned path each one redirects to.

Examples:
  apigateway routes
  apigateway routes --format json`,
	RunE: runRoutes,
}

func init() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.Flags().VarP(routesFormat, "format", "f", "Output format (text, json)")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// The table does not depend on the provider, so none is dialled.
	srv, err := server.New(commandContext(cmd), server.Dependencies{
		Config:   cfg,
		Logger:   logging.NewNopLogger(),
		Provider: content.NewStaticProvider(),
	})
	if err != nil {
		return fmt.Errorf("failed to assemble routes: %w", err)
	}
	defer srv.Shutdown(commandContext(cmd))

	routes := srv.Routes()
	out := cmd.OutOrStdout()

	if routesFormat.String() == "json" {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(routes)
	}
	return writeRoutesTable(out, routes)
}

func writeRoutesTable(out io.Writer, routes []gatewayhttp.Route) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tFAMILY\tKIND\tTARGET")
	for _, route := range routes {
		target := "-"
		if route.Target != "" {
			target = "308 " + route.Target
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", route.Method, route.Path, route.Family, route.Kind, target)
	}
	return w.Flush()
}
