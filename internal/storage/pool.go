// Package storage provides the embedded SQL storage layer for Claudette.
//
// Claudette runs as a single process with locally persisted state (quota
// ledger, cache entries, backend metrics), so an embedded, pure-Go SQLite
// database via modernc.org/sqlite fits better than a client/server store.
// Nothing here needs cross-process pub/sub or a connection pooler.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB opened against a local SQLite file (or :memory: for
// tests). SQLite serializes writers internally; callers don't need their
// own locking beyond normal database/sql usage.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New opens dsn (a filesystem path, or ":memory:") and verifies
// connectivity. Busy-timeout and foreign-key pragmas are set on every new
// connection via the DSN so a single writer never returns SQLITE_BUSY
// under normal contention.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	conn, err := sql.Open("sqlite", dsn+sep+"_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)")
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	// SQLite has exactly one writer; a large pool just serializes behind
	// the same lock with extra overhead.
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	return &DB{conn: conn, logger: logger}, nil
}

// NewMemory opens a shared-cache in-memory database, for test environments
// and for CLAUDETTE_FORCE_MEMORY_STORE=1's "usable with no backing storage"
// escape hatch. Every NewMemory handle open at the same time in one process
// sees the same database; it is discarded once the last connection to it
// closes, and state does not survive process exit.
func NewMemory(ctx context.Context, logger *slog.Logger) (*DB, error) {
	return New(ctx, "file::memory:?cache=shared", logger)
}

// Conn returns the underlying *sql.DB for use by other packages.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close shuts down the connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
