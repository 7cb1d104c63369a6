package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery results.
const (
	DeliveryPublished    = "published"
	DeliveryRetry        = "retry"
	DeliveryDeadLettered = "dead_lettered"
)

// OutboxMetrics tracks the outbox publisher loop.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	batch      prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_deliveries_total",
		Help: "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	batch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_batch_duration_seconds",
		Help:    "Time spent publishing one claimed outbox batch.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(deliveries, batch)
	return &OutboxMetrics{deliveries: deliveries, batch: batch}
}

func (m *OutboxMetrics) ObserveDelivery(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(labelOrUnknown(eventType), result).Inc()
}

func (m *OutboxMetrics) ObserveBatch(duration time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(duration.Seconds())
}
