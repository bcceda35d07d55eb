// Package store provides the persistence backends for trace records.
package store

import (
	"context"
	"errors"

	"github.com/dan-solli/longtrace/pkg/record"
)

// Store persists batches of records. Implementations must be safe for use
// by the single writer goroutine plus Close from the owning facade, and
// must treat InsertBatch as atomic-or-failed: on error the caller retries
// or drops the whole batch.
type Store interface {
	// EnsureSchema creates the records table and its parent_id index if
	// absent. Idempotent.
	EnsureSchema(ctx context.Context) error

	// InsertBatch bulk-inserts records in slice order.
	InsertBatch(ctx context.Context, records []record.Record) error

	// Close releases the backing resources.
	Close() error
}

// ErrInvalidDatabaseName rejects database names that are not purely
// alphanumeric. Names are interpolated into CREATE DATABASE, which cannot
// be parameterized.
var ErrInvalidDatabaseName = errors.New("store: database name must be alphanumeric")

func validDatabaseName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
