package togglr

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rafaeljc/togglr-sdk-go/internal/observability"
)

// Logger receives diagnostics from soft-failure paths: the default fallback of
// IsEnabledOrDefault and retried attempts. Calls are fire-and-forget.
type Logger interface {
	Log(msg string, fields map[string]any)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(msg string, fields map[string]any)

func (f LoggerFunc) Log(msg string, fields map[string]any) { f(msg, fields) }

// NewSlogLogger returns a Logger writing warnings to l. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

type slogLogger struct {
	l *slog.Logger
}

func (s slogLogger) Log(msg string, fields map[string]any) {
	attrs := make([]slog.Attr, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	s.l.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}

// Metrics receives the counters and latencies of the evaluation pipeline.
// Implementations must be safe for concurrent use.
type Metrics interface {
	// IncEvaluateRequest is called once per Evaluate call.
	IncEvaluateRequest()
	// IncCacheHit and IncCacheMiss are called once per cache lookup.
	IncCacheHit()
	IncCacheMiss()
	// IncEvaluateError is called once per failed Evaluate with the ErrorKind name.
	IncEvaluateError(code string)
	// ObserveEvaluateLatency is called once per completed Evaluate, retries included.
	ObserveEvaluateLatency(seconds float64)
}

// retryObserver is an optional extension of Metrics counting retry attempts.
type retryObserver interface {
	IncRetry(operation string)
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) IncEvaluateRequest()            {}
func (NoopMetrics) IncCacheHit()                   {}
func (NoopMetrics) IncCacheMiss()                  {}
func (NoopMetrics) IncEvaluateError(string)        {}
func (NoopMetrics) ObserveEvaluateLatency(float64) {}

// NewPrometheusMetrics registers the SDK collectors (togglr_sdk_*) on reg and
// returns them as a Metrics sink. A nil reg uses prometheus.DefaultRegisterer.
// Registering twice on the same registry panics.
func NewPrometheusMetrics(reg prometheus.Registerer) Metrics {
	return observability.NewMetrics(reg)
}
