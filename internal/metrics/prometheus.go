// Package metrics provides Prometheus instrumentation for the slicing pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	SourcesProcessed prometheus.Counter
	SourcesFailed    prometheus.Counter
	SegmentsWritten  prometheus.Counter
	SegmentsDropped  prometheus.Counter
	SliceDuration    prometheus.Histogram
	SegmentLength    prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SourcesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxslice_sources_processed_total",
			Help: "Total number of input files sliced successfully",
		}),
		SourcesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxslice_sources_failed_total",
			Help: "Total number of input files that could not be sliced",
		}),
		SegmentsWritten: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxslice_segments_written_total",
			Help: "Total number of segment files written",
		}),
		SegmentsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxslice_segments_dropped_total",
			Help: "Total number of empty segments skipped",
		}),
		SliceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxslice_slice_duration_seconds",
			Help:    "Wall time spent loading, slicing and writing one input file",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		}),
		SegmentLength: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxslice_segment_length_seconds",
			Help:    "Audio length of written segments",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 8), // 0.5s to ~1 minute
		}),
	}
}

// RecordSource records the outcome of slicing one input file.
func (m *Metrics) RecordSource(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SourcesFailed.Inc()
		return
	}
	m.SourcesProcessed.Inc()
	m.SliceDuration.Observe(elapsed.Seconds())
}

// RecordSegment records one written segment of the given audio length.
func (m *Metrics) RecordSegment(length time.Duration) {
	if m == nil {
		return
	}
	m.SegmentsWritten.Inc()
	m.SegmentLength.Observe(length.Seconds())
}

// RecordDropped records an empty segment that was skipped.
func (m *Metrics) RecordDropped() {
	if m == nil {
		return
	}
	m.SegmentsDropped.Inc()
}
