package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess    = "success"
	OutcomeValidation = "validation_error"
	OutcomeFetch      = "fetch_error"
	OutcomeForbidden  = "forbidden"
	OutcomeFailure    = "failure"
)

// IngestionMetrics tracks supplier catalog imports.
type IngestionMetrics struct {
	runs     *prometheus.CounterVec
	goods    prometheus.Counter
	duration prometheus.Histogram
}

// NewIngestionMetrics registers the ingestion metrics on the provided registerer.
func NewIngestionMetrics(reg prometheus.Registerer) *IngestionMetrics {
	if reg == nil {
		return &IngestionMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_ingestion_runs_total",
		Help: "Catalog ingestion runs by outcome.",
	}, []string{"outcome"})
	goods := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "catalog_ingestion_goods_total",
		Help: "Product offers written by catalog ingestion.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "catalog_ingestion_duration_seconds",
		Help:    "Duration of catalog ingestion runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(runs, goods, duration)
	return &IngestionMetrics{
		runs:     runs,
		goods:    goods,
		duration: duration,
	}
}

// ObserveRun records one finished run.
func (m *IngestionMetrics) ObserveRun(outcome string, goods int, duration time.Duration) {
	if m == nil || m.runs == nil {
		return
	}
	if outcome == "" {
		outcome = OutcomeFailure
	}
	m.runs.WithLabelValues(outcome).Inc()
	if goods > 0 {
		m.goods.Add(float64(goods))
	}
	m.duration.Observe(duration.Seconds())
}
