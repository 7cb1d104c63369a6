package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics tracks scheduled maintenance jobs run by the cron worker.
type JobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
}

func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Scheduled job runs by job and outcome.",
	}, []string{"job", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of scheduled jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run per job.",
	}, []string{"job"})
	reg.MustRegister(runs, duration, lastSuccess)
	return &JobMetrics{runs: runs, duration: duration, lastSuccess: lastSuccess}
}

// ObserveRun records one finished job run. A nil err counts as success.
func (m *JobMetrics) ObserveRun(job string, duration time.Duration, err error) {
	if m == nil || m.runs == nil {
		return
	}
	job = labelOrUnknown(job)
	m.duration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		m.runs.WithLabelValues(job, OutcomeFailure).Inc()
		return
	}
	m.runs.WithLabelValues(job, OutcomeSuccess).Inc()
	m.lastSuccess.WithLabelValues(job).SetToCurrentTime()
}

func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
