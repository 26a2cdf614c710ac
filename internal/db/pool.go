// Package db opens and pools the relational database backing the store.
package db

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/db/dialect"
)

// Pool provides separate read and write database connections.
//
// For SQLite with WAL mode, this enables concurrent reads while serializing
// writes through a single connection. The writer pool uses MaxOpenConns(1) to
// avoid SQLITE_BUSY on write contention, while the reader pool allows multiple
// concurrent connections for SELECT queries.
//
// For PostgreSQL, both Writer and Reader return the same *sqlx.DB since pgx
// handles connection pooling internally.
type Pool struct {
	writer *sqlx.DB
	reader *sqlx.DB
	driver string
}

// NewPool creates a Pool from separate writer and reader connections.
func NewPool(writer, reader *sqlx.DB, driver string) *Pool {
	return &Pool{writer: writer, reader: reader, driver: driver}
}

// Open connects to the database selected by the configuration: PostgreSQL
// when a URL is set, an embedded SQLite file otherwise.
func Open(cfg config.DatabaseConfig) (*Pool, error) {
	if cfg.IsPostgres() {
		conn, err := OpenPostgres(cfg.URL, cfg.MaxConns)
		if err != nil {
			return nil, err
		}
		return NewPool(conn, conn, dialect.PGX), nil
	}

	writer, err := OpenSQLite(cfg.SQLitePath, cfg.BusyTimeoutMs)
	if err != nil {
		return nil, err
	}
	reader, err := OpenSQLiteReader(cfg.SQLitePath, cfg.BusyTimeoutMs)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("failed to open reader pool: %w", err)
	}
	return NewPool(writer, reader, dialect.SQLite3), nil
}

// Writer returns the connection pool used for INSERT, UPDATE, DELETE, and
// transactions. For SQLite this is limited to a single connection.
func (p *Pool) Writer() *sqlx.DB { return p.writer }

// Reader returns the connection pool used for SELECT queries. For SQLite
// this opens multiple read-only connections that can operate concurrently
// with the writer via WAL snapshots.
func (p *Pool) Reader() *sqlx.DB { return p.reader }

// Driver returns the sql driver name ("sqlite3" or "pgx").
func (p *Pool) Driver() string { return p.driver }

// Close closes both the writer and reader pools.
func (p *Pool) Close() error {
	if p.driver == dialect.SQLite3 {
		// Update query planner statistics before closing; the
		// SQLite-recommended lightweight maintenance call.
		_, _ = p.writer.Exec("PRAGMA optimize")
	}
	wErr := p.writer.Close()
	// Avoid double-close when both pools share the same *sqlx.DB (Postgres).
	if p.reader != p.writer {
		if rErr := p.reader.Close(); rErr != nil && wErr == nil {
			return rErr
		}
	}
	return wErr
}
