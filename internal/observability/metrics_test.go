package observability_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"github.com/rafaeljc/togglr-sdk-go/internal/observability"
	"github.com/rafaeljc/togglr-sdk-go/internal/testsupport"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)

	testsupport.AssertMetricDelta(t, reg, "togglr_sdk_evaluate_requests_total", nil, 2, func() {
		m.IncEvaluateRequest()
		m.IncEvaluateRequest()
	})
	testsupport.AssertMetricDelta(t, reg, "togglr_sdk_cache_hits_total", nil, 1, m.IncCacheHit)
	testsupport.AssertMetricDelta(t, reg, "togglr_sdk_cache_misses_total", nil, 1, m.IncCacheMiss)
	testsupport.AssertMetricDelta(t, reg, "togglr_sdk_evaluate_errors_total", map[string]string{"code": "internal_server_error"}, 1, func() {
		m.IncEvaluateError("internal_server_error")
	})
	testsupport.AssertMetricDelta(t, reg, "togglr_sdk_retries_total", map[string]string{"operation": "evaluate"}, 1, func() {
		m.IncRetry("evaluate")
	})

	m.ObserveEvaluateLatency(0.012)
	testsupport.AssertHistogramRecorded(t, reg, "togglr_sdk_evaluate_duration_seconds", nil)
}

func TestNewMetrics_IsolatedRegistries(t *testing.T) {
	t.Parallel()

	regA, regB := prometheus.NewRegistry(), prometheus.NewRegistry()
	a := observability.NewMetrics(regA)
	_ = observability.NewMetrics(regB)

	a.IncCacheHit()

	assert.Equal(t, 1.0, testsupport.GetMetricValue(t, regA, "togglr_sdk_cache_hits_total", nil))
	assert.Equal(t, 0.0, testsupport.GetMetricValue(t, regB, "togglr_sdk_cache_hits_total", nil))
}

func TestNewMetrics_PanicsOnDoubleRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_ = observability.NewMetrics(reg)
	assert.Panics(t, func() { observability.NewMetrics(reg) })
}
