package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the HTTP server.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// set only when a registry received the collectors
	registered bool
}

// NewMetrics builds the HTTP request collectors and registers them with
// registry. A nil registry leaves them unregistered, which suits tests.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupbin",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests by status code and method",
			},
			[]string{"code", "method"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "groupbin",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by status code and method",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"code", "method"},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.requestsTotal,
			m.requestDuration,
		)
		m.registered = true
	}

	return m
}

// Instrument wraps next with request counting and timing. A nil Metrics
// returns next unchanged.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return promhttp.InstrumentHandlerDuration(m.requestDuration,
		promhttp.InstrumentHandlerCounter(m.requestsTotal, next))
}
