package main

import (
	"github.com/driftline/driftline/internal/common/config"
	"github.com/driftline/driftline/internal/db"

	convrepo "github.com/driftline/driftline/internal/conversation/repository"
	dirrepo "github.com/driftline/driftline/internal/directory/repository"
	flowrepo "github.com/driftline/driftline/internal/flow/repository"
)

// Repositories bundles the three stores behind the services.
type Repositories struct {
	Conversations convrepo.Repository
	Directory     dirrepo.Repository
	Flows         flowrepo.Repository
}

// provideRepositories opens the configured database (PostgreSQL when a URL
// is set, embedded SQLite otherwise) and builds the SQL-backed stores on a
// shared pool.
func provideRepositories(cfg *config.Config) (*db.Pool, *Repositories, func() error, error) {
	pool, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, nil, err
	}
	cleanup := pool.Close

	conversations, err := convrepo.NewSQLRepository(pool)
	if err != nil {
		_ = cleanup()
		return nil, nil, nil, err
	}
	directory, err := dirrepo.NewSQLRepository(pool)
	if err != nil {
		_ = cleanup()
		return nil, nil, nil, err
	}
	flows, err := flowrepo.NewSQLRepository(pool)
	if err != nil {
		_ = cleanup()
		return nil, nil, nil, err
	}

	return pool, &Repositories{
		Conversations: conversations,
		Directory:     directory,
		Flows:         flows,
	}, cleanup, nil
}
