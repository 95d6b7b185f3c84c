// Package config loads the SDK and CLI configuration from TOGGLR_* environment variables.
// It uses envconfig for environment variable loading and validator for validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// Prefix is the environment variable prefix (TOGGLR_API_KEY, TOGGLR_CACHE_ENABLED, ...).
const Prefix = "TOGGLR"

// Config holds the complete configuration of an SDK client and of the CLI around it.
type Config struct {
	APIKey         string        `envconfig:"API_KEY"`
	BaseURL        string        `envconfig:"BASE_URL" default:"http://localhost:8090"`
	Timeout        time.Duration `envconfig:"TIMEOUT" default:"800ms" validate:"min=1ms"`
	Retries        int           `envconfig:"RETRIES" default:"2" validate:"min=0,max=10"`
	MaxConnections int           `envconfig:"MAX_CONNECTIONS" default:"100" validate:"min=1"`
	UserAgent      string        `envconfig:"USER_AGENT"`

	Backoff       BackoffConfig       `envconfig:"BACKOFF"`
	Cache         CacheConfig         `envconfig:"CACHE"`
	TLS           TLSConfig           `envconfig:"TLS"`
	Log           LogConfig           `envconfig:"LOG"`
	Observability ObservabilityConfig `envconfig:"OBSERVABILITY"`
}

// LogConfig configures the structured logger of the CLI.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"FORMAT" default:"text" validate:"oneof=json text pretty"`
}

// Load reads configuration from environment variables with the TOGGLR prefix.
// The API key is not required here; callers that talk to the API check it.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate performs validation on the loaded configuration using go-playground/validator.
func (c *Config) Validate() error {
	validate := validator.New()

	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if _, err := parseAndValidateURL(c.BaseURL, []string{"http", "https"}); err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}

	if err := c.Backoff.Validate(); err != nil {
		return err
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}

	if err := c.TLS.Validate(); err != nil {
		return err
	}

	if err := c.Observability.Validate(); err != nil {
		return err
	}

	return nil
}

// LogConfig logs the current configuration (without sensitive data).
func (c *Config) LogConfig(log *slog.Logger) {
	log.Info("configuration loaded",
		slog.String("base_url", c.BaseURL),
		slog.Bool("api_key_set", c.APIKey != ""),
		slog.Duration("timeout", c.Timeout),
		slog.Int("retries", c.Retries),
		slog.Duration("backoff_base_delay", c.Backoff.BaseDelay),
		slog.Duration("backoff_max_delay", c.Backoff.MaxDelay),
		slog.Float64("backoff_factor", c.Backoff.Factor),
		slog.Bool("cache_enabled", c.Cache.Enabled),
		slog.Int("cache_max_size", c.Cache.MaxSize),
		slog.Duration("cache_ttl", c.Cache.TTL),
		slog.Bool("tls_configured", c.TLS.IsConfigured()),
		slog.Bool("tls_insecure", c.TLS.Insecure),
		slog.String("log_level", c.Log.Level),
		slog.String("log_format", c.Log.Format),
	)
}

// Shared validation helper functions

// validatePort checks if port is valid (0-65535). Port 0 asks the kernel for a free port.
func validatePort(port, context string) error {
	if port == "" {
		return fmt.Errorf("%s port cannot be empty", context)
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("%s port must be a number: %w", context, err)
	}
	if portNum < 0 || portNum > 65535 {
		return fmt.Errorf("%s port must be between 0 and 65535, got %d", context, portNum)
	}
	return nil
}

// validatePath checks that an HTTP route starts with a slash and has no whitespace.
func validatePath(path, context string) error {
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("%s path must start with '/', got %q", context, path)
	}
	if strings.ContainsAny(path, " \t\n") {
		return fmt.Errorf("%s path cannot contain whitespace", context)
	}
	return nil
}

// parseAndValidateURL is a helper for parsing URLs with scheme validation
func parseAndValidateURL(rawURL string, allowedSchemes []string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	if !slices.Contains(allowedSchemes, parsed.Scheme) {
		return nil, fmt.Errorf("invalid scheme '%s', must be one of: %v", parsed.Scheme, allowedSchemes)
	}

	if parsed.Host == "" {
		return nil, fmt.Errorf("host is required in URL")
	}

	return parsed, nil
}
