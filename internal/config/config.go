// Package config provides configuration management for the API gateway using
// Viper for loading from files, environment variables, and command-line flags.
//
// Environment variables use the APIGATEWAY_ prefix with "." replaced by "_",
// e.g. APIGATEWAY_SERVERLESS_MOUNT_PREFIX. Every key is registered with its
// default before unmarshalling so that viper consults the environment for it.
package config

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/apigateway/internal/logging"
)

const (
	DefaultPort              = 8080
	DefaultHost              = "localhost"
	DefaultEnvironment       = "development"
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultMountPrefix       = "/api"
	DefaultServiceName       = "api-gateway"
	DefaultAPIVersion        = "v1"
	DefaultCorrelationHeader = "X-Correlation-ID"
	DefaultProvider          = "static"
	DefaultCMSTimeout        = 5 * time.Second
	DefaultContentDir        = "content"
	DefaultPostgresMaxConns  = 4
	DefaultMetricsPath       = "/metrics"

	redacted = "[REDACTED]"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
	Serverless ServerlessConfig `mapstructure:"serverless" yaml:"serverless" json:"serverless"`
	Gateway    GatewayConfig    `mapstructure:"gateway" yaml:"gateway" json:"gateway"`
	Content    ContentConfig    `mapstructure:"content" yaml:"content" json:"content"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging" json:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
}

type ServerConfig struct {
	Port               int           `mapstructure:"port" yaml:"port" json:"port"`
	Host               string        `mapstructure:"host" yaml:"host" json:"host"`
	Environment        string        `mapstructure:"environment" yaml:"environment" json:"environment"`
	AllowedOrigins     []string      `mapstructure:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	ExposeErrorDetails bool          `mapstructure:"expose_error_details" yaml:"expose_error_details" json:"expose_error_details"`
}

// ServerlessConfig controls path normalization behind a serverless rewrite layer.
type ServerlessConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	MountPrefix string `mapstructure:"mount_prefix" yaml:"mount_prefix" json:"mount_prefix"`
}

type GatewayConfig struct {
	ServiceName       string `mapstructure:"service_name" yaml:"service_name" json:"service_name"`
	APIVersion        string `mapstructure:"api_version" yaml:"api_version" json:"api_version"`
	CorrelationHeader string `mapstructure:"correlation_header" yaml:"correlation_header" json:"correlation_header"`
}

// ContentConfig selects the content provider bound at start.
type ContentConfig struct {
	Provider string         `mapstructure:"provider" yaml:"provider" json:"provider"`
	CMS      CMSConfig      `mapstructure:"cms" yaml:"cms" json:"cms"`
	File     FileConfig     `mapstructure:"file" yaml:"file" json:"file"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres" json:"postgres"`
}

type CMSConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	Token   string        `mapstructure:"token" yaml:"token" json:"token"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

type FileConfig struct {
	Dir   string `mapstructure:"dir" yaml:"dir" json:"dir"`
	Watch bool   `mapstructure:"watch" yaml:"watch" json:"watch"`
}

type PostgresConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" yaml:"max_conns" json:"max_conns"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" json:"level"`
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	config, result, err := Decode(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration: %w", &result.Errors[0])
	}

	return config, nil
}

// Decode unmarshals v, applies defaults and validates the result. The
// returned error covers decoding only; validation issues are in the result.
func Decode(v *viper.Viper) (*Config, *ValidationResult, error) {
	SetDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, nil, err
	}

	// Handle allowed origins set via viper (workaround for viper slice handling)
	if v.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		config.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}

	applyDefaults(&config)

	return &config, ValidateConfigWithDetails(&config), nil
}

// SetDefaults registers every configuration key on v. AutomaticEnv only
// resolves keys viper already knows about, so a key without a default would
// never be read from the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.environment", DefaultEnvironment)
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.shutdown_timeout", DefaultShutdownTimeout)
	v.SetDefault("server.expose_error_details", false)

	v.SetDefault("serverless.enabled", false)
	v.SetDefault("serverless.mount_prefix", DefaultMountPrefix)

	v.SetDefault("gateway.service_name", DefaultServiceName)
	v.SetDefault("gateway.api_version", DefaultAPIVersion)
	v.SetDefault("gateway.correlation_header", DefaultCorrelationHeader)

	v.SetDefault("content.provider", DefaultProvider)
	v.SetDefault("content.cms.base_url", "")
	v.SetDefault("content.cms.token", "")
	v.SetDefault("content.cms.timeout", DefaultCMSTimeout)
	v.SetDefault("content.file.dir", DefaultContentDir)
	v.SetDefault("content.file.watch", false)
	v.SetDefault("content.postgres.dsn", "")
	v.SetDefault("content.postgres.max_conns", DefaultPostgresMaxConns)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", DefaultMetricsPath)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	config, _, err := Decode(viper.New())
	if err != nil {
		// defaults alone always decode
		panic(err)
	}
	return config
}

// applyDefaults fills fields that were explicitly set to an empty value.
func applyDefaults(config *Config) {
	if config.Server.Host == "" {
		config.Server.Host = DefaultHost
	}
	if config.Server.Environment == "" {
		config.Server.Environment = DefaultEnvironment
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if config.Serverless.MountPrefix == "" {
		config.Serverless.MountPrefix = DefaultMountPrefix
	}

	if config.Gateway.ServiceName == "" {
		config.Gateway.ServiceName = DefaultServiceName
	}
	if config.Gateway.APIVersion == "" {
		config.Gateway.APIVersion = DefaultAPIVersion
	}
	if config.Gateway.CorrelationHeader == "" {
		config.Gateway.CorrelationHeader = DefaultCorrelationHeader
	}

	if config.Content.Provider == "" {
		config.Content.Provider = DefaultProvider
	}
	if config.Content.CMS.Timeout == 0 {
		config.Content.CMS.Timeout = DefaultCMSTimeout
	}
	if config.Content.File.Dir == "" {
		config.Content.File.Dir = DefaultContentDir
	}
	if config.Content.Postgres.MaxConns == 0 {
		config.Content.Postgres.MaxConns = DefaultPostgresMaxConns
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}

	if config.Metrics.Path == "" {
		config.Metrics.Path = DefaultMetricsPath
	}
}

// Redacted returns a copy that is safe to print or log.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	if out.Content.CMS.Token != "" {
		out.Content.CMS.Token = redacted
	}
	if out.Content.Postgres.DSN != "" {
		out.Content.Postgres.DSN = redacted
	}
	return &out
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsDevelopment reports whether the gateway runs in development mode.
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "development"
}

// LoggerConfig converts the logging section into a logger configuration.
func (l LoggingConfig) LoggerConfig(output io.Writer) (*logging.LoggerConfig, error) {
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	return &logging.LoggerConfig{
		Level:  level,
		Format: l.Format,
		Output: output,
	}, nil
}
