package upload

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ============================================================================
// Prometheus Metrics for Resumable Uploads
// ============================================================================

// LabelResult carries the outcome on the chunk and merge counters.
const LabelResult = "result"

// Result constants for chunk ingestion.
const (
	ResultAccepted = "accepted"
	ResultMismatch = "mismatch"
	ResultRejected = "rejected"
)

// Result constants for merge elections.
const (
	ResultCommitted    = "committed"
	ResultFailed       = "failed"
	ResultLostElection = "lost_election"
)

// Metrics provides Prometheus metrics for the upload assembler.
type Metrics struct {
	chunksTotal   *prometheus.CounterVec
	mergesTotal   *prometheus.CounterVec
	bytesTotal    prometheus.Counter
	mergeDuration prometheus.Histogram

	// set only when a registry received the collectors
	registered bool
}

// NewMetrics builds the upload collectors and registers them with
// registry. A nil registry leaves them unregistered, which suits tests.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupbin",
				Subsystem: "upload",
				Name:      "chunks_total",
				Help:      "Total number of ingested chunks by result",
			},
			[]string{LabelResult},
		),

		mergesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "groupbin",
				Subsystem: "upload",
				Name:      "merges_total",
				Help:      "Total number of merge elections by result",
			},
			[]string{LabelResult},
		),

		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "groupbin",
				Subsystem: "upload",
				Name:      "bytes_total",
				Help:      "Total bytes committed to the blob store",
			},
		),

		mergeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "groupbin",
				Subsystem: "upload",
				Name:      "merge_duration_seconds",
				Help:      "Time spent merging chunks and committing the result",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
		),
	}

	if registry != nil {
		registry.MustRegister(
			m.chunksTotal,
			m.mergesTotal,
			m.bytesTotal,
			m.mergeDuration,
		)
		m.registered = true
	}

	return m
}

// ObserveChunk records the outcome of one ingested chunk.
func (m *Metrics) ObserveChunk(result string) {
	if m == nil {
		return
	}
	m.chunksTotal.WithLabelValues(result).Inc()
}

// ObserveMerge records the outcome of a merge election.
func (m *Metrics) ObserveMerge(result string) {
	if m == nil {
		return
	}
	m.mergesTotal.WithLabelValues(result).Inc()
}

// ObserveCommit records a committed upload.
func (m *Metrics) ObserveCommit(size int64, duration time.Duration) {
	if m == nil {
		return
	}
	m.bytesTotal.Add(float64(size))
	m.mergeDuration.Observe(duration.Seconds())
}

// ============================================================================
// prometheus.Collector plumbing
// ============================================================================

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	if m == nil || !m.registered {
		return
	}

	m.chunksTotal.Describe(ch)
	m.mergesTotal.Describe(ch)
	ch <- m.bytesTotal.Desc()
	ch <- m.mergeDuration.Desc()
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	if m == nil || !m.registered {
		return
	}

	m.chunksTotal.Collect(ch)
	m.mergesTotal.Collect(ch)
	ch <- m.bytesTotal
	ch <- m.mergeDuration
}
