// Package relstore is the relational store adapter: typed repository operations over the
// memory_notes/memory_note_chunks/memory_versions/memory_space_grants/indexing_outbox/
// ingest_decisions tables, plus schema bootstrap.
package relstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/steveyegge/elf/internal/config"
	"github.com/steveyegge/elf/internal/telemetry"
)

var (
	tracer = telemetry.Tracer("github.com/steveyegge/elf/internal/relstore")
	meter  = telemetry.Meter("github.com/steveyegge/elf/internal/relstore")
)

// Store wraps a Postgres connection pool reached through pgx's database/sql stdlib shim, the
// same blank-import-a-driver-then-use-database/sql idiom the teacher's Dolt server-mode path
// uses for the MySQL wire driver.
type Store struct {
	db     *sql.DB
	closed atomic.Bool
}

// Open connects to Postgres and verifies the connection with a ping. Schema bootstrap is a
// separate step (see Bootstrap) so callers can run it once per deployment rather than per
// process.
func Open(ctx context.Context, cfg config.Postgres) (*Store, error) {
	ctx, span := tracer.Start(ctx, "relstore.Open")
	defer span.End()

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("relstore: open: %w", err)
	}
	if cfg.PoolMaxConns > 0 {
		db.SetMaxOpenConns(int(cfg.PoolMaxConns))
	}
	if err := db.PingContext(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		_ = db.Close()
		return nil, fmt.Errorf("relstore: ping: %w", err)
	}
	span.SetAttributes(attribute.Int("elf.relstore.pool_max_conns", int(cfg.PoolMaxConns)))
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool. Safe to call more than once.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for packages (outbox, admin rebuild) that need to run
// ad-hoc queries this adapter does not wrap.
func (s *Store) DB() *sql.DB {
	return s.db
}
