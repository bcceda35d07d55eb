package longtrace

import (
	"context"
	"sync"
)

// Process-wide default handle for embedders that want singleton wiring.
// Library consumers composing their own lifecycle should prefer Open and
// an explicitly passed *DB.
var (
	globalMu sync.Mutex
	globalDB *DB
)

// Initialize opens the process-wide default handle and returns the name of
// the database in use. It may succeed once; later calls return
// ErrAlreadyInitialized.
func Initialize(ctx context.Context, cfg Config) (string, error) {
	db, err := Open(ctx, cfg)
	if err != nil {
		return "", err
	}
	if err := setDefault(db); err != nil {
		db.Close(ctx)
		return "", err
	}
	return db.DatabaseName(), nil
}

func setDefault(db *DB) error {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalDB != nil {
		return ErrAlreadyInitialized
	}
	globalDB = db
	return nil
}

// Default returns the process-wide handle, or nil before Initialize.
func Default() *DB {
	globalMu.Lock()
	defer globalMu.Unlock()
	return globalDB
}

// Flush flushes the process-wide handle.
func Flush(ctx context.Context) error {
	db := Default()
	if db == nil {
		return ErrNotInitialized
	}
	return db.Flush(ctx)
}

// Shutdown closes the process-wide handle and clears it, allowing a later
// re-initialization (useful for tests and controlled restarts).
func Shutdown(ctx context.Context) error {
	globalMu.Lock()
	db := globalDB
	globalDB = nil
	globalMu.Unlock()

	if db == nil {
		return ErrNotInitialized
	}
	return db.Close(ctx)
}
