package store

import (
	"context"
	"errors"
	"sync"

	"github.com/dan-solli/longtrace/pkg/record"
)

// ErrInjected is the failure returned by a Memory store armed with FailNext.
var ErrInjected = errors.New("store: injected failure")

// Memory is an in-process store. It serves as a null sink (trace without a
// database) and as the test double for the writer and facade.
type Memory struct {
	mu       sync.Mutex
	records  []record.Record
	inserts  int
	failures int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// EnsureSchema is a no-op.
func (m *Memory) EnsureSchema(ctx context.Context) error {
	return nil
}

// InsertBatch appends the batch, or fails with ErrInjected while armed.
func (m *Memory) InsertBatch(ctx context.Context, records []record.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failures > 0 {
		m.failures--
		return ErrInjected
	}
	if len(records) == 0 {
		return nil
	}
	m.inserts++
	m.records = append(m.records, records...)
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error {
	return nil
}

// FailNext arms the store to fail the next n InsertBatch calls.
func (m *Memory) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Records returns a snapshot of everything stored, in insertion order.
func (m *Memory) Records() []record.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]record.Record, len(m.records))
	copy(out, m.records)
	return out
}

// InsertCalls reports how many non-empty batches have been written.
func (m *Memory) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}
