package testsupport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Metric returns the full name of a Switchboard metric:
// Metric("engine", "reloads_total") is "switchboard_engine_reloads_total".
func Metric(subsystem, name string) string {
	return "switchboard_" + subsystem + "_" + name
}

// GetMetricValue reads a series from the default registry: the value of a
// counter or gauge, the sample count of a histogram. The first series whose
// labels include every pair of labels is used. Untouched series read as 0.
func GetMetricValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()

	m := series(t, name, labels)
	switch {
	case m == nil:
		return 0
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Histogram != nil:
		return float64(m.Histogram.GetSampleCount())
	}
	return 0
}

// AssertMetricDelta checks that fn moves the series by exactly delta.
func AssertMetricDelta(t *testing.T, name string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, name, labels)
	fn()
	assert.Equal(t, delta, GetMetricValue(t, name, labels)-before, "%s%v", name, labels)
}

// AssertMetricDeltaAsync is AssertMetricDelta for work that completes in
// the background (watchers, subscribers, tickers).
func AssertMetricDeltaAsync(t *testing.T, name string, labels map[string]string, delta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, name, labels)
	fn()
	require.Eventually(t, func() bool {
		return GetMetricValue(t, name, labels) == before+delta
	}, 5*time.Second, 20*time.Millisecond, "%s%v never moved by %v", name, labels, delta)
}

// AssertHistogramRecorded checks that the histogram series has samples.
func AssertHistogramRecorded(t *testing.T, name string, labels map[string]string) {
	t.Helper()
	assert.Positive(t, GetMetricValue(t, name, labels), "%s%v has no samples", name, labels)
}

func series(t *testing.T, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "failed to gather metrics")

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m.GetLabel(), labels) {
				return m
			}
		}
	}
	return nil
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok {
			if v != p.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}
