package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	togglr "github.com/rafaeljc/togglr-sdk-go"
	"github.com/rafaeljc/togglr-sdk-go/internal/observability"
)

// watchCommand evaluates features on an interval and logs every change, while
// exposing probes and the SDK metrics for scraping.
func watchCommand(a *cliApp) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Evaluate features periodically and serve probes and metrics",
		ArgsUsage: "<feature-key>...",
		Flags: []cli.Flag{
			attrFlag(),
			&cli.DurationFlag{Name: "interval", Value: 10 * time.Second, Usage: "Evaluation interval"},
			&cli.StringFlag{Name: "port", Usage: "Probe server port (overrides TOGGLR_OBSERVABILITY_PORT)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return errors.New("at least one feature key is required")
			}
			interval := c.Duration("interval")
			if interval <= 0 {
				return errors.New("interval must be positive")
			}
			rc, err := parseAttrs(c.StringSlice("attr"))
			if err != nil {
				return err
			}

			obsCfg := a.cfg.Observability
			if c.IsSet("port") {
				obsCfg.Port = c.String("port")
				if err := obsCfg.Validate(); err != nil {
					return err
				}
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			client, err := a.newClient(togglr.WithMetrics(togglr.NewPrometheusMetrics(reg)))
			if err != nil {
				return err
			}
			defer client.Close()

			apiChecker := observability.CheckerFunc{
				ComponentName: "togglr_api",
				Fn: func(ctx context.Context) error {
					if !client.HealthCheck(ctx) {
						return errors.New("api is not healthy")
					}
					return nil
				},
			}

			srv := observability.NewServer(a.log, &obsCfg, reg, apiChecker)
			if err := srv.Start(); err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), obsCfg.Timeout)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					a.log.Error("failed to stop observability server", slog.String("error", err.Error()))
				}
			}()

			w := &watcher{client: client, log: a.log, rc: rc, keys: c.Args().Slice(), last: map[string]togglr.Outcome{}}
			w.run(c.Context, interval)
			return nil
		},
	}
}

type watcher struct {
	client *togglr.Client
	log    *slog.Logger
	rc     *togglr.RequestContext
	keys   []string
	last   map[string]togglr.Outcome
}

// run evaluates every key immediately and then on each tick until ctx is done.
func (w *watcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		w.tick(ctx)

		select {
		case <-ctx.Done():
			w.log.Info("watch stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *watcher) tick(ctx context.Context) {
	for _, key := range w.keys {
		outcome, err := w.client.Evaluate(ctx, key, w.rc)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("evaluation failed",
				slog.String("feature_key", key),
				slog.String("error_kind", togglr.KindOf(err).String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		prev, seen := w.last[key]
		w.last[key] = outcome
		if seen && prev == outcome {
			continue
		}
		w.log.Info("feature changed",
			slog.String("feature_key", key),
			slog.Bool("found", outcome.Found),
			slog.Bool("enabled", outcome.Enabled),
			slog.String("value", outcome.Value),
		)
	}
}
