package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	togglr "github.com/rafaeljc/togglr-sdk-go"
)

func attrFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:    "attr",
		Aliases: []string{"a"},
		Usage:   "Context attribute as key=value (repeatable)",
	}
}

func healthCommand(a *cliApp) *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check that the Togglr API is reachable",
		Action: func(c *cli.Context) error {
			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ok := client.HealthCheck(c.Context)
			if err := writeJSON(c.App.Writer, map[string]any{"ok": ok}); err != nil {
				return err
			}
			if !ok {
				return cli.Exit("", 2)
			}
			return nil
		},
	}
}

func evalCommand(a *cliApp) *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Evaluate a feature for a context",
		ArgsUsage: "<feature-key>",
		Flags:     []cli.Flag{attrFlag()},
		Action: func(c *cli.Context) error {
			featureKey, rc, err := featureAndContext(c)
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			outcome, err := client.Evaluate(c.Context, featureKey, rc)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, outcomeView(featureKey, outcome))
		},
	}
}

func enabledCommand(a *cliApp) *cli.Command {
	return &cli.Command{
		Name:      "enabled",
		Usage:     "Report whether a feature is enabled for a context",
		ArgsUsage: "<feature-key>",
		Flags: []cli.Flag{
			attrFlag(),
			&cli.BoolFlag{
				Name:  "default",
				Usage: "Value to print when the evaluation fails; without it failures are errors",
			},
		},
		Action: func(c *cli.Context) error {
			featureKey, rc, err := featureAndContext(c)
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			var enabled bool
			if c.IsSet("default") {
				enabled = client.IsEnabledOrDefault(c.Context, featureKey, rc, c.Bool("default"))
			} else if enabled, err = client.IsEnabled(c.Context, featureKey, rc); err != nil {
				return err
			}
			return writeJSON(c.App.Writer, map[string]any{"feature_key": featureKey, "enabled": enabled})
		},
	}
}

func featureHealthCommand(a *cliApp) *cli.Command {
	return &cli.Command{
		Name:      "feature-health",
		Usage:     "Show the error budget of a feature",
		ArgsUsage: "<feature-key>",
		Action: func(c *cli.Context) error {
			featureKey, err := featureArg(c)
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			health, err := client.GetFeatureHealth(c.Context, featureKey)
			if err != nil {
				return err
			}
			return writeJSON(c.App.Writer, map[string]any{
				"feature_key":     health.FeatureKey,
				"environment_key": health.EnvironmentKey,
				"enabled":         health.Enabled,
				"auto_disabled":   health.AutoDisabled,
				"error_rate":      health.ErrorRate,
				"threshold":       health.Threshold,
				"last_error_at":   health.LastErrorAt,
				"healthy":         health.Healthy(),
			})
		},
	}
}

func reportErrorCommand(a *cliApp) *cli.Command {
	return &cli.Command{
		Name:      "report-error",
		Usage:     "Report a failure observed while executing a feature",
		ArgsUsage: "<feature-key>",
		Flags: []cli.Flag{
			attrFlag(),
			&cli.StringFlag{Name: "type", Usage: "Error type (timeout, validation, service_unavailable, ...)", Required: true},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Error message", Required: true},
		},
		Action: func(c *cli.Context) error {
			featureKey, rc, err := featureAndContext(c)
			if err != nil {
				return err
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			report := togglr.ErrorReport{
				ErrorType:    c.String("type"),
				ErrorMessage: c.String("message"),
			}
			if rc.Len() > 0 {
				report.Context = rc.Map()
			}
			if err := client.ReportError(c.Context, featureKey, report); err != nil {
				return err
			}
			return writeJSON(c.App.Writer, map[string]any{"feature_key": featureKey, "reported": true})
		},
	}
}

func trackCommand(a *cliApp) *cli.Command {
	return &cli.Command{
		Name:      "track",
		Usage:     "Send an analytics event for a served variant",
		ArgsUsage: "<feature-key>",
		Flags: []cli.Flag{
			attrFlag(),
			&cli.StringFlag{Name: "variant", Usage: "Variant key that was served", Required: true},
			&cli.StringFlag{Name: "event", Value: string(togglr.EventSuccess), Usage: "Event type (success, failure, error)"},
			&cli.Float64Flag{Name: "reward", Usage: "Optional reward"},
			&cli.StringFlag{Name: "dedup-key", Usage: "Idempotency key"},
			&cli.TimestampFlag{Name: "at", Layout: time.RFC3339, Usage: "Event time (RFC3339)"},
		},
		Action: func(c *cli.Context) error {
			featureKey, rc, err := featureAndContext(c)
			if err != nil {
				return err
			}
			eventType, err := togglr.ParseEventType(c.String("event"))
			if err != nil {
				return err
			}

			event := togglr.NewTrackEvent(c.String("variant"), eventType).WithRequestContext(rc)
			if c.IsSet("reward") {
				event.WithReward(c.Float64("reward"))
			}
			if key := c.String("dedup-key"); key != "" {
				event.WithDedupKey(key)
			}
			if at := c.Timestamp("at"); at != nil {
				event.WithCreatedAt(*at)
			}

			client, err := a.newClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.TrackEvent(c.Context, featureKey, event); err != nil {
				return err
			}
			return writeJSON(c.App.Writer, map[string]any{"feature_key": featureKey, "tracked": true})
		},
	}
}

func featureArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", errors.New("exactly one feature key is required")
	}
	return c.Args().First(), nil
}

func featureAndContext(c *cli.Context) (string, *togglr.RequestContext, error) {
	featureKey, err := featureArg(c)
	if err != nil {
		return "", nil, err
	}
	rc, err := parseAttrs(c.StringSlice("attr"))
	if err != nil {
		return "", nil, err
	}
	return featureKey, rc, nil
}

func outcomeView(featureKey string, o togglr.Outcome) map[string]any {
	return map[string]any{
		"feature_key": featureKey,
		"found":       o.Found,
		"enabled":     o.Enabled,
		"value":       o.Value,
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
