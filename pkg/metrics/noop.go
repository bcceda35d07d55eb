package metrics

import "context"

// NoopCollector is a no-op implementation used when metrics are not wired.
type NoopCollector struct{}

// NewNoopCollector creates a no-op collector
func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

// RecordEnqueued does nothing
func (n *NoopCollector) RecordEnqueued(ctx context.Context) {}

// RecordDropped does nothing
func (n *NoopCollector) RecordDropped(ctx context.Context, reason string) {}

// RecordFlush does nothing
func (n *NoopCollector) RecordFlush(ctx context.Context, status string, batchSize int, durationMs int64) {
}

// SetQueueDepth does nothing
func (n *NoopCollector) SetQueueDepth(ctx context.Context, depth int64) {}
