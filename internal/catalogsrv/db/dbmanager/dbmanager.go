// Package dbmanager provides functionality for managing the PostgreSQL database
// connection pool and handing out request-scoped connections.
package dbmanager

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

type Db interface {
	// Conn returns a new connection to the database.
	Conn(ctx context.Context) (Conn, error)
	// Stats returns the number of connection requests and returns.
	Stats() (requests, returns uint64)
}

type Conn interface {
	// Conn returns the underlying *sql.Conn. Do not close this directly.
	// Use Conn.Close(ctx) to return the connection to the pool.
	Conn() *sql.Conn
	// Close returns the connection back to the pool.
	Close(ctx context.Context)
}

// NewDb returns a pooled DB for the given backend type. A connection is not
// concurrency safe and must be used in a single goroutine; the service uses
// one connection per request and one per pipeline run.
func NewDb(ctx context.Context, dbtype string) Db {
	switch dbtype {
	case "postgresql":
		db, err := NewPostgresqlDb()
		if err != nil || db == nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to create PostgreSQL DB")
			return nil
		}
		return db
	}
	return nil
}
