// Package logger provides the structured logger used by the togglr CLI and by
// applications that want the SDK's diagnostics in the same shape.
// It wraps the standard library "log/slog" package: JSON for machines, text for
// plain terminals and colored output (tint) for humans.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Supported output formats.
const (
	FormatJSON   = "json"
	FormatText   = "text"
	FormatPretty = "pretty"
)

// Config selects the handler and the global attributes of a logger.
type Config struct {
	// Service is attached to every record as "service".
	Service string
	// Version is attached to every record as "version".
	Version string
	// Level is parsed case-insensitively (debug, info, warn, error). Defaults to info.
	Level string
	// Format is one of json, text or pretty. Defaults to json.
	Format string
	// AddSource adds the file:line to each record.
	AddSource bool
}

// New creates a *slog.Logger writing to os.Stderr.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter creates a *slog.Logger from cfg, writing to w.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	if w == nil {
		panic("logger: writer cannot be nil")
	}

	level := ParseLevel(cfg.Level)

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case FormatText:
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	case FormatPretty:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  cfg.AddSource,
			TimeFormat: time.RFC3339,
		})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: cfg.AddSource})
	}

	logger := slog.New(handler)

	var attrs []any
	if cfg.Service != "" {
		attrs = append(attrs, slog.String("service", cfg.Service))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	if len(attrs) > 0 {
		logger = logger.With(attrs...)
	}

	return logger
}

// ParseLevel converts a string to slog.Level. Defaults to INFO.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	// UnmarshalText handles case insensitivity (INFO, info, Info)
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}
