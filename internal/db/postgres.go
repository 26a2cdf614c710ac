package db

import (
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/driftline/driftline/internal/db/dialect"
)

// OpenPostgres opens a PostgreSQL database connection using pgx.
// If maxConns is 0 or negative it defaults to 10.
func OpenPostgres(dsn string, maxConns int) (*sqlx.DB, error) {
	conn, err := sqlx.Open(dialect.PGX, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 10
	}

	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(maxConns / 2)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	return conn, nil
}
