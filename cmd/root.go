package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/apigateway/internal/config"
	"github.com/conneroisu/apigateway/internal/logging"
)

const (
	envPrefix      = "APIGATEWAY"
	configName     = ".apigateway"
	configFileName = configName + ".yml"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "apigateway",
	Short: "A versioned JSON API gateway for site content",
	Long: `apigateway serves a small versioned JSON API in front of a content source.

Every response is a single JSON envelope. Unversioned legacy paths redirect
to their /v1 equivalents, and a serverless mount prefix can be stripped
before routing.

Quick Start:
  apigateway serve                 Start the gateway
  apigateway routes                Show the route table
  apigateway config validate       Check .apigateway.yml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is "+configFileName+", can also use "+envPrefix+"_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")

	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log-level":  "logging.level",
		"log-format": "logging.format",
	})
}

// initConfig points viper at the config file and environment.
//
// Config file priority: --config, then APIGATEWAY_CONFIG_FILE, then
// .apigateway.yml in the working directory. A missing file is not an error.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv(envPrefix + "_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(configName)
	}

	// APIGATEWAY_SERVER_PORT, APIGATEWAY_CONTENT_CMS_TOKEN, ...
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the process logger from the logging section.
func newLogger(cfg *config.Config, output io.Writer) (logging.Logger, error) {
	loggerConfig, err := cfg.Logging.LoggerConfig(output)
	if err != nil {
		return nil, fmt.Errorf("invalid logging configuration: %w", err)
	}
	return logging.NewLogger(loggerConfig), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
