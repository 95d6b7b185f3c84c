// Package testsupport holds test helpers shared across packages: a fake
// Togglr SDK API and Prometheus assertions.
package testsupport

import (
	"sort"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

// GetMetricValue retrieves the current value of a Counter or Gauge from g.
// For histograms it returns the sample count.
func GetMetricValue(t *testing.T, g prometheus.Gatherer, metricName string, labelFilter map[string]string) float64 {
	t.Helper()

	mfs, err := g.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	// mfs is guaranteed to be sorted by name.
	idx := sort.Search(len(mfs), func(i int) bool {
		return mfs[i].GetName() >= metricName
	})

	if idx < len(mfs) && mfs[idx].GetName() == metricName {
		for _, m := range mfs[idx].GetMetric() {
			if matchesLabels(m, labelFilter) {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
				if m.GetGauge() != nil {
					return m.GetGauge().GetValue()
				}
				if m.GetHistogram() != nil {
					return float64(m.GetHistogram().GetSampleCount())
				}
			}
		}
	}
	return 0
}

func matchesLabels(m *io_prometheus_client.Metric, filter map[string]string) bool {
	if len(filter) == 0 {
		return true
	}
	metricLabels := make(map[string]string)
	for _, pair := range m.GetLabel() {
		metricLabels[pair.GetName()] = pair.GetValue()
	}

	for k, v := range filter {
		if val, ok := metricLabels[k]; !ok || val != v {
			return false
		}
	}
	return true
}

// AssertMetricDelta asserts that a metric increased by exactly expectedDelta during fn.
func AssertMetricDelta(t *testing.T, g prometheus.Gatherer, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	initial := GetMetricValue(t, g, metricName, labels)
	fn()
	final := GetMetricValue(t, g, metricName, labels)

	assert.Equal(t, expectedDelta, final-initial, "metric %s%v delta mismatch", metricName, labels)
}

// AssertHistogramRecorded asserts that a histogram has recorded at least one sample.
func AssertHistogramRecorded(t *testing.T, g prometheus.Gatherer, metricName string, labels map[string]string) {
	t.Helper()

	count := GetMetricValue(t, g, metricName, labels)
	assert.Greater(t, count, 0.0, "histogram %s%v should have recorded samples", metricName, labels)
}
