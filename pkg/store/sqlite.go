package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dan-solli/longtrace/pkg/record"
)

// Same columns and index name as the Postgres contract, mapped to SQLite
// affinities (ids as TEXT, attr as serialized TEXT).
const createRecordsSQLite = `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		span_id TEXT NOT NULL,
		parent_id TEXT,
		type INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		message TEXT,
		attr TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_records_parent_id ON records(parent_id);
`

// SQLite is the embedded store variant for single-process deployments and
// tests. dbPath is a file path; the file is created on first use.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database file and applies the schema.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open(sqliteDriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer goroutine owns the connection anyway.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the records table and index if absent. Idempotent.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createRecordsSQLite); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	return nil
}

// InsertBatch writes all records in one transaction, preserving order.
func (s *SQLite) InsertBatch(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch insert: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (span_id, parent_id, type, timestamp, message, attr)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		var parent any
		if r.ParentID != nil {
			parent = r.ParentID.String()
		}
		var attr any
		if r.Attr != nil {
			attr = string(r.Attr)
		}
		if _, err := stmt.ExecContext(ctx, r.SpanID.String(), parent, int(r.Kind), r.Timestamp, r.Message, attr); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch insert: %w", err)
	}
	return nil
}

// Close releases database resources.
func (s *SQLite) Close() error {
	return s.db.Close()
}
