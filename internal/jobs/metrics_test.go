package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metrics:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if labels[pair.GetName()] != pair.GetValue() {
					continue metrics
				}
			}
			return metric.GetCounter().GetValue()
		}
	}
	return 0
}

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	require.NoError(t, metrics.Track("reports:warmup").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, metrics.Track("reports:warmup").End(boom), boom)

	require.Equal(t, 1.0, counterValue(t, registry, "odyssey_jobs_total", map[string]string{"job": "reports:warmup", "status": "success"}))
	require.Equal(t, 1.0, counterValue(t, registry, "odyssey_jobs_total", map[string]string{"job": "reports:warmup", "status": "failure"}))
	require.Equal(t, 1.0, counterValue(t, registry, "odyssey_jobs_failures_total", map[string]string{"job": "reports:warmup"}))

	metrics.AddWarmed("monthly-revenue", 2)
	metrics.AddWarmed("monthly-revenue", 0)
	require.Equal(t, 2.0, counterValue(t, registry, "odyssey_reports_warmed_total", map[string]string{"report": "monthly-revenue"}))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	require.NoError(t, metrics.Track("noop").End(nil))
	metrics.AddWarmed("noop", 1)
}
