package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineCollector provides Prometheus metrics for the ingest pipeline
type PipelineCollector struct {
	enqueuedTotal prometheus.Counter
	droppedTotal  *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec
	batchSize     prometheus.Histogram
	queueDepth    prometheus.Gauge
	registry      *prometheus.Registry
}

// NewCollector creates a new Prometheus pipeline collector
func NewCollector() *PipelineCollector {
	registry := prometheus.NewRegistry()

	enqueuedTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "longtrace_records_enqueued_total",
			Help: "Total number of records accepted into the ingest queue",
		},
	)

	droppedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "longtrace_records_dropped_total",
			Help: "Total number of records or batches dropped, by reason",
		},
		[]string{"reason"},
	)

	flushDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "longtrace_flush_duration_seconds",
			Help:    "Duration of batch writes to the store, by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"status"},
	)

	batchSize := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "longtrace_batch_size_records",
			Help:    "Number of records per flushed batch",
			Buckets: []float64{1, 8, 32, 128, 512, 1024, 4096},
		},
	)

	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "longtrace_queue_depth",
			Help: "Current number of records buffered in the ingest queue",
		},
	)

	registry.MustRegister(enqueuedTotal)
	registry.MustRegister(droppedTotal)
	registry.MustRegister(flushDuration)
	registry.MustRegister(batchSize)
	registry.MustRegister(queueDepth)

	return &PipelineCollector{
		enqueuedTotal: enqueuedTotal,
		droppedTotal:  droppedTotal,
		flushDuration: flushDuration,
		batchSize:     batchSize,
		queueDepth:    queueDepth,
		registry:      registry,
	}
}

// RecordEnqueued counts one record accepted into the queue
func (m *PipelineCollector) RecordEnqueued(ctx context.Context) {
	m.enqueuedTotal.Inc()
}

// RecordDropped counts one drop with its reason (queue_full, closed, write_failed)
func (m *PipelineCollector) RecordDropped(ctx context.Context, reason string) {
	m.droppedTotal.WithLabelValues(reason).Inc()
}

// RecordFlush records the outcome, size and duration of one batch write
func (m *PipelineCollector) RecordFlush(ctx context.Context, status string, batchSize int, durationMs int64) {
	m.flushDuration.WithLabelValues(status).Observe(float64(durationMs) / 1000.0)
	m.batchSize.Observe(float64(batchSize))
}

// SetQueueDepth sets the current queue depth gauge
func (m *PipelineCollector) SetQueueDepth(ctx context.Context, depth int64) {
	m.queueDepth.Set(float64(depth))
}

// Registry returns the Prometheus registry for HTTP exposure
func (m *PipelineCollector) Registry() *prometheus.Registry {
	return m.registry
}
