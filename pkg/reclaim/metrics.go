package reclaim

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric label names.
const (
	LabelResult = "result"
	LabelKind   = "kind"
)

// Values for the result label on the cycle counter.
const (
	ResultOK     = "ok"
	ResultErrors = "errors"
)

// Values for the kind label on the removal counter.
const (
	KindGroupRows  = "group_rows"
	KindGroupDirs  = "group_dirs"
	KindOrphanRows = "orphan_rows"
	KindOrphanDirs = "orphan_dirs"
	KindChunks     = "chunks"
	KindLocks      = "locks"
	KindSessions   = "sessions"
)

// Metrics provides Prometheus metrics for the reclamation worker.
type Metrics struct {
	cyclesTotal   *prometheus.CounterVec
	removedTotal  *prometheus.CounterVec
	cycleDuration prometheus.Histogram

	registered bool
}

// NewMetrics builds the reclamation collectors and registers them with
// registry. A nil registry leaves them unregistered, which suits tests.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		cyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupbin",
				Subsystem: "reclaim",
				Name:      "cycles_total",
				Help:      "Total number of reclamation cycles by result",
			},
			[]string{LabelResult},
		),

		removedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupbin",
				Subsystem: "reclaim",
				Name:      "removed_total",
				Help:      "Total number of removed artifacts by kind",
			},
			[]string{LabelKind},
		),

		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "groupbin",
				Subsystem: "reclaim",
				Name:      "cycle_duration_seconds",
				Help:      "Time spent per reclamation cycle",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.cyclesTotal,
			m.removedTotal,
			m.cycleDuration,
		)
		m.registered = true
	}

	return m
}

// ObserveCycle records a finished cycle and its duration.
func (m *Metrics) ObserveCycle(result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cyclesTotal.WithLabelValues(result).Inc()
	m.cycleDuration.Observe(duration.Seconds())
}

// ObserveRemoved records removed artifacts of one kind.
func (m *Metrics) ObserveRemoved(kind string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.removedTotal.WithLabelValues(kind).Add(float64(count))
}
