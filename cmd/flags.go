package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/content"
)

// formatValue is a flag value restricted to a fixed set of output formats.
type formatValue struct {
	value   string
	allowed []string
}

var _ pflag.Value = (*formatValue)(nil)

func newFormatValue(value string, allowed ...string) *formatValue {
	return &formatValue{value: value, allowed: allowed}
}

func (f *formatValue) String() string { return f.value }

func (f *formatValue) Set(value string) error {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "yml" {
		value = "yaml"
	}
	if !slices.Contains(f.allowed, value) {
		return fmt.Errorf("invalid format %q, must be one of: %s", value, strings.Join(f.allowed, ", "))
	}
	f.value = value
	return nil
}

func (f *formatValue) Type() string { return "format" }

// addServerFlags registers the serve flags and binds them to their config keys.
func addServerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntP("port", "p", config.DefaultPort, "Port to serve on")
	flags.String("host", config.DefaultHost, "Host to bind to")
	flags.Bool("serverless", false, "Strip the serverless mount prefix before routing")
	flags.String("mount-prefix", config.DefaultMountPrefix, "Serverless mount prefix")

	names := make([]string, 0, len(content.ProviderNames()))
	for _, name := range content.ProviderNames() {
		names = append(names, name.String())
	}
	flags.String("provider", "", "Content provider ("+strings.Join(names, ", ")+")")

	bindFlags(flags, map[string]string{
		"port":         "server.port",
		"host":         "server.host",
		"serverless":   "serverless.enabled",
		"mount-prefix": "serverless.mount_prefix",
		"provider":     "content.provider",
	})
}

// bindFlags binds each named flag to a viper key.
func bindFlags(flags *pflag.FlagSet, bindings map[string]string) {
	for flagName, key := range bindings {
		flag := flags.Lookup(flagName)
		if flag == nil {
			panic(fmt.Sprintf("bindFlags: unknown flag %q", flagName))
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			panic(fmt.Sprintf("bindFlags: %s: %v", flagName, err))
		}
	}
}
