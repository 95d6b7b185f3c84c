// Package main is the togglr command line client.
//
// It is a thin composition root over the SDK: it loads TOGGLR_* settings from the
// environment (and an optional .env file), applies flag overrides, and runs one
// SDK operation per subcommand, printing the result as JSON.
//
// Usage:
//
//	togglr health
//	togglr eval new-checkout --attr user.id=42 --attr country_code=BR
//	togglr enabled new-checkout --default=false
//	togglr watch new-checkout --interval 5s
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	togglr "github.com/rafaeljc/togglr-sdk-go"
	"github.com/rafaeljc/togglr-sdk-go/internal/config"
	"github.com/rafaeljc/togglr-sdk-go/internal/logger"
)

func main() {
	// A missing .env file is fine; the environment may be set already.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: loading .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// cliApp holds the state shared by every subcommand once the global flags are parsed.
type cliApp struct {
	cfg *config.Config
	log *slog.Logger
}

func newApp() *cli.App {
	a := &cliApp{}

	return &cli.App{
		Name:    "togglr",
		Usage:   "Evaluate and inspect Togglr feature flags",
		Version: togglr.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "SDK API key",
				EnvVars: []string{"TOGGLR_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Togglr API base URL",
				EnvVars: []string{"TOGGLR_BASE_URL"},
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "Timeout of a single request",
				EnvVars: []string{"TOGGLR_TIMEOUT"},
			},
			&cli.IntFlag{
				Name:    "retries",
				Usage:   "Retries after the first attempt",
				EnvVars: []string{"TOGGLR_RETRIES"},
			},
			&cli.BoolFlag{
				Name:    "insecure",
				Usage:   "Skip TLS certificate verification",
				EnvVars: []string{"TOGGLR_TLS_INSECURE"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"TOGGLR_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (json, text, pretty)",
				EnvVars: []string{"TOGGLR_LOG_FORMAT"},
			},
		},
		Before: a.before,
		Commands: []*cli.Command{
			healthCommand(a),
			evalCommand(a),
			enabledCommand(a),
			featureHealthCommand(a),
			reportErrorCommand(a),
			trackCommand(a),
			watchCommand(a),
		},
	}
}

// before loads the environment configuration and applies the global flags on top.
func (a *cliApp) before(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if c.IsSet("api-key") {
		cfg.APIKey = c.String("api-key")
	}
	if c.IsSet("base-url") {
		cfg.BaseURL = c.String("base-url")
	}
	if c.IsSet("timeout") {
		cfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("retries") {
		cfg.Retries = c.Int("retries")
	}
	if c.IsSet("insecure") {
		cfg.TLS.Insecure = c.Bool("insecure")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.Log.Format = c.String("log-format")
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.log = logger.New(logger.Config{
		Service: "togglr-cli",
		Version: togglr.Version,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})
	c.Context = logger.WithContext(c.Context, a.log)

	cfg.LogConfig(a.log.With(slog.String("component", "config")))
	return nil
}

// newClient builds an SDK client from the loaded configuration plus extra options.
func (a *cliApp) newClient(extra ...togglr.Option) (*togglr.Client, error) {
	cfg := a.cfg
	if cfg.APIKey == "" {
		return nil, errors.New("an API key is required (--api-key or TOGGLR_API_KEY)")
	}

	opts := []togglr.Option{
		togglr.WithBaseURL(cfg.BaseURL),
		togglr.WithTimeout(cfg.Timeout),
		togglr.WithRetries(cfg.Retries),
		togglr.WithBackoff(cfg.Backoff.BaseDelay, cfg.Backoff.MaxDelay, cfg.Backoff.Factor),
		togglr.WithMaxConnections(cfg.MaxConnections),
		togglr.WithTLS(togglr.TLSConfig{
			CACertPath:               cfg.TLS.CACertPath,
			CACertData:               cfg.TLS.CACertData,
			ClientCertPath:           cfg.TLS.ClientCertPath,
			ClientKeyPath:            cfg.TLS.ClientKeyPath,
			ServerName:               cfg.TLS.ServerName,
			SkipHostnameVerification: cfg.TLS.SkipHostnameVerification,
			Insecure:                 cfg.TLS.Insecure,
		}),
		togglr.WithLogger(togglr.NewSlogLogger(a.log)),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, togglr.WithUserAgent(cfg.UserAgent))
	}
	if cfg.Cache.Enabled {
		opts = append(opts,
			togglr.WithCache(cfg.Cache.MaxSize, cfg.Cache.TTL),
			togglr.WithCacheAlgorithm(cfg.Cache.Algorithm),
		)
	}

	client, err := togglr.NewClient(cfg.APIKey, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}
