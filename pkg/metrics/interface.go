package metrics

import "context"

// Collector is the interface for pipeline metrics collection.
// Implementations include the Prometheus-backed collector and the no-op
// collector used when metrics are not wired up.
type Collector interface {
	RecordEnqueued(ctx context.Context)
	RecordDropped(ctx context.Context, reason string)
	RecordFlush(ctx context.Context, status string, batchSize int, durationMs int64)
	SetQueueDepth(ctx context.Context, depth int64)
}
