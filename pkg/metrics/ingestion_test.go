package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestionMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngestionMetrics(reg)

	m.ObserveRun(OutcomeSuccess, 3, 120*time.Millisecond)
	m.ObserveRun(OutcomeValidation, 0, 5*time.Millisecond)
	m.ObserveRun("", 0, time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "catalog_ingestion_runs_total", "outcome", OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "catalog_ingestion_runs_total", "outcome", OutcomeFailure)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	goods := findMetricFamily(mfs, "catalog_ingestion_goods_total")
	require.NotNil(t, goods)
	assert.Equal(t, float64(3), goods.GetMetric()[0].GetCounter().GetValue())

	hist := findMetricFamily(mfs, "catalog_ingestion_duration_seconds")
	require.NotNil(t, hist)
	assert.Equal(t, uint64(3), hist.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestIngestionMetricsNilSafe(t *testing.T) {
	var m *IngestionMetrics
	m.ObserveRun(OutcomeSuccess, 1, time.Second)
	NewIngestionMetrics(nil).ObserveRun(OutcomeSuccess, 1, time.Second)
}
