package webhook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var deliveryBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Metrics counts webhook deliveries by event kind and outcome.
type Metrics struct {
	deliveries *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the delivery collectors with reg. Collectors already
// registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panem",
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by event kind and outcome",
		}, []string{"event", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "panem",
			Subsystem: "webhook",
			Name:      "delivery_duration_seconds",
			Help:      "Latency of webhook deliveries",
			Buckets:   deliveryBuckets,
		}, []string{"event"}),
	}
	if reg == nil {
		return m
	}
	if err := reg.Register(m.deliveries); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				m.deliveries = existing
			}
		}
	}
	if err := reg.Register(m.duration); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.duration = existing
			}
		}
	}
	return m
}

func (m *Metrics) observe(event, outcome string, elapsed time.Duration) {
	m.deliveries.With(prometheus.Labels{"event": event, "outcome": outcome}).Inc()
	m.duration.With(prometheus.Labels{"event": event}).Observe(elapsed.Seconds())
}
