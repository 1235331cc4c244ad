package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
)

// Metrics holds the API's request collectors.
type Metrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	authFailures   *prometheus.CounterVec
}

// NewMetrics registers the API collectors with reg, reusing collectors that
// an earlier call already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panem",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "panem",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panem",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"key"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "panem",
			Subsystem: "api",
			Name:      "auth_failures_total",
			Help:      "Requests rejected by the API key gate",
		}, []string{"reason"}),
	}
	if reg == nil {
		return m
	}
	m.requestTotal = registerCounterVec(reg, m.requestTotal)
	m.rateLimitHits = registerCounterVec(reg, m.rateLimitHits)
	m.authFailures = registerCounterVec(reg, m.authFailures)
	if err := reg.Register(m.requestLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.requestLatency = existing
			}
		}
	}
	return m
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) recordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) recordRateLimitHit(key string) {
	if m == nil {
		return
	}
	m.rateLimitHits.With(prometheus.Labels{"key": key}).Inc()
}

func (m *Metrics) recordAuthFailure(reason string) {
	if m == nil {
		return
	}
	m.authFailures.With(prometheus.Labels{"reason": reason}).Inc()
}
