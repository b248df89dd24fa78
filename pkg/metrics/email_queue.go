package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Delivery outcomes recorded by the email queue.
const (
	DeliveryCompleted  = "completed"
	DeliveryRetried    = "retried"
	DeliveryFailed     = "failed"
	// DeliveryUnrecorded is a send whose completion could not be stored.
	DeliveryUnrecorded = "unrecorded"
)

// EmailQueueMetrics exports job counts per status and delivery outcomes.
type EmailQueueMetrics struct {
	jobs       *prometheus.GaugeVec
	deliveries *prometheus.CounterVec
	latency    prometheus.Histogram
}

func NewEmailQueueMetrics(reg prometheus.Registerer) *EmailQueueMetrics {
	if reg == nil {
		return &EmailQueueMetrics{}
	}
	jobs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "email_queue",
		Name:      "jobs",
		Help:      "Email jobs by status.",
	}, []string{"status"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "email_queue",
		Name:      "deliveries_total",
		Help:      "Email delivery attempts by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "email_queue",
		Name:      "delivery_duration_seconds",
		Help:      "Time spent in the email transport per attempt.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(jobs, deliveries, latency)
	return &EmailQueueMetrics{jobs: jobs, deliveries: deliveries, latency: latency}
}

// SetJobCounts publishes the current count for each status.
func (m *EmailQueueMetrics) SetJobCounts(counts map[string]int64) {
	if m == nil || m.jobs == nil {
		return
	}
	for status, count := range counts {
		m.jobs.WithLabelValues(normalizeLabel(status)).Set(float64(count))
	}
}

// ObserveDelivery records one transport attempt.
func (m *EmailQueueMetrics) ObserveDelivery(outcome string, duration time.Duration) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(outcome)).Inc()
	m.latency.Observe(duration.Seconds())
}
