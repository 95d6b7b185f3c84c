// Package observability provides the Prometheus metrics, OpenTelemetry tracing
// helpers and the probe server used by the SDK and its CLI.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// namespace defines the global prefix for all metrics (e.g., togglr_sdk_...).
const namespace = "togglr"

const subsystem = "sdk"

// latencyBuckets cover a remote evaluation including retries.
// Range: 1ms to 10s.
var latencyBuckets = []float64{.001, .0025, .005, .010, .025, .050, .100, .250, .500, 1, 2.5, 5, 10}

// Metrics is the Prometheus sink of the SDK client.
//
// Unlike package-level promauto collectors, every Metrics registers its own
// collectors on the given Registerer, so several clients can report into
// separate registries. Registering twice on the same Registerer panics.
type Metrics struct {
	// EvaluateRequests counts Evaluate calls.
	// Metric: togglr_sdk_evaluate_requests_total
	EvaluateRequests prometheus.Counter

	// CacheHits and CacheMisses count result cache lookups.
	// Metric: togglr_sdk_cache_hits_total, togglr_sdk_cache_misses_total
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// EvaluateErrors counts terminal Evaluate failures by error kind.
	// Metric: togglr_sdk_evaluate_errors_total{code}
	EvaluateErrors *prometheus.CounterVec

	// EvaluateLatency measures Evaluate calls end to end, retries included.
	// Metric: togglr_sdk_evaluate_duration_seconds
	EvaluateLatency prometheus.Histogram

	// Retries counts retry attempts by operation.
	// Metric: togglr_sdk_retries_total{operation}
	Retries *prometheus.CounterVec
}

// NewMetrics registers the SDK collectors on reg. A nil reg uses prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		EvaluateRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluate_requests_total",
			Help:      "Total feature evaluations requested",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "Total evaluations served from the local result cache",
		}),
		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_misses_total",
			Help:      "Total result cache lookups that went to the API",
		}),
		EvaluateErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluate_errors_total",
			Help:      "Total evaluations that failed after retries, by error kind",
		}, []string{"code"}),
		EvaluateLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "evaluate_duration_seconds",
			Help:      "Time taken by Evaluate, including cache lookups and retries",
			Buckets:   latencyBuckets,
		}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "retries_total",
			Help:      "Total retry attempts, by operation",
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncEvaluateRequest() { m.EvaluateRequests.Inc() }

func (m *Metrics) IncCacheHit() { m.CacheHits.Inc() }

func (m *Metrics) IncCacheMiss() { m.CacheMisses.Inc() }

func (m *Metrics) IncEvaluateError(code string) { m.EvaluateErrors.WithLabelValues(code).Inc() }

func (m *Metrics) ObserveEvaluateLatency(seconds float64) { m.EvaluateLatency.Observe(seconds) }

// IncRetry is picked up by the client through an optional interface.
func (m *Metrics) IncRetry(operation string) { m.Retries.WithLabelValues(operation).Inc() }
