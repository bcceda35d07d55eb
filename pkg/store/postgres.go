package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dan-solli/longtrace/pkg/record"
)

// Fixed storage contract; existing deployments depend on these exact
// columns and the parent_id index.
const (
	createRecordsTableSQL = `
		CREATE TABLE IF NOT EXISTS records (
			id BIGSERIAL PRIMARY KEY,
			span_id UUID NOT NULL,
			parent_id UUID,
			type INTEGER NOT NULL,
			timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
			message TEXT,
			attr JSONB
		)`

	createParentIndexSQL = `
		CREATE INDEX IF NOT EXISTS idx_records_parent_id ON records(parent_id)`
)

// ConnConfig carries the components of a parsed connection URL, without a
// database name: the target database is chosen per facade.
type ConnConfig struct {
	User     string
	Password string
	Host     string
	Port     uint16
}

func (c ConnConfig) dsn(dbName string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, dbName)
}

// Postgres is the production store: a pgx connection pool bound to one
// target database. Writes arrive only from the single writer goroutine.
type Postgres struct {
	pool   *pgxpool.Pool
	dbName string
}

// EnsureDatabase creates the target database if it does not exist, working
// through the administrative postgres database. Idempotent.
func EnsureDatabase(ctx context.Context, cfg ConnConfig, dbName string) error {
	if !validDatabaseName(dbName) {
		return ErrInvalidDatabaseName
	}

	conn, err := pgx.Connect(ctx, cfg.dsn("postgres"))
	if err != nil {
		return fmt.Errorf("connect to postgres database: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	err = conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check database existence: %w", err)
	}
	if exists {
		return nil
	}

	// Database names cannot be parameterized; dbName is validated above.
	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %q", dbName)); err != nil {
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	return nil
}

// NewPostgres opens a pool against the target database. The database must
// already exist (see EnsureDatabase); the schema is applied separately.
func NewPostgres(ctx context.Context, cfg ConnConfig, dbName string) (*Postgres, error) {
	if !validDatabaseName(dbName) {
		return nil, ErrInvalidDatabaseName
	}

	pool, err := pgxpool.New(ctx, cfg.dsn(dbName))
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", dbName, err)
	}

	return &Postgres{pool: pool, dbName: dbName}, nil
}

// EnsureSchema applies the records DDL idempotently.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createRecordsTableSQL); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createParentIndexSQL); err != nil {
		return fmt.Errorf("create parent_id index: %w", err)
	}
	return nil
}

// InsertBatch bulk-inserts via COPY, preserving slice order.
func (s *Postgres) InsertBatch(ctx context.Context, records []record.Record) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]any, len(records))
	for i, r := range records {
		var parent any
		if r.ParentID != nil {
			parent = r.ParentID.String()
		}
		var attr any
		if r.Attr != nil {
			attr = r.Attr
		}
		rows[i] = []any{r.SpanID.String(), parent, int32(r.Kind), r.Timestamp, r.Message, attr}
	}

	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"records"},
		[]string{"span_id", "parent_id", "type", "timestamp", "message", "attr"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert batch of %d: %w", len(records), err)
	}
	return nil
}

// DatabaseName reports the database this store writes to.
func (s *Postgres) DatabaseName() string {
	return s.dbName
}

// Close releases the pool.
func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
