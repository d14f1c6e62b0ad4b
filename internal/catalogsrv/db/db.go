// Package db provides database interfaces and implementations for the catalog
// publishing service. It defines four main interfaces:
// - RecordStore: consistent snapshot reads of the source-of-truth record tables
// - StateManager: reconciled per-catalog state and mirror sync bookkeeping
// - QueryManager: read-only list and search queries against reconciled state
// - ConnectionManager: database connection lifecycle
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/dbmanager"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/catalogsrv/db/postgresql"
	"github.com/datapub/datapub/internal/common/apperrors"
	"github.com/datapub/datapub/internal/common/uuid"
)

// RecordStore reads the authoritative record tables. The snapshot runs inside
// a single repeatable-read transaction; see the postgresql implementation for
// the consistency contract.
type RecordStore interface {
	RecordSnapshot(ctx context.Context, catalogID catcommon.CatalogId, since *time.Time, full bool) ([]models.SnapshotEntry, apperrors.Error)
}

// StateManager owns the derived per-catalog state: catalog_record rows, the
// published_record markers, the facet index, and mirror sync bookkeeping.
type StateManager interface {
	// Catalog
	GetCatalog(ctx context.Context, catalogID catcommon.CatalogId) (*models.Catalog, apperrors.Error)
	UpsertCatalog(ctx context.Context, catalog *models.Catalog) apperrors.Error
	ListCatalogs(ctx context.Context) ([]models.CatalogSummary, apperrors.Error)

	// Catalog record reconciliation
	UpsertCatalogRecord(ctx context.Context, cr *models.CatalogRecord, doi string, facets []models.FacetValue) apperrors.Error
	GetCatalogRecord(ctx context.Context, catalogID catcommon.CatalogId, recordID uuid.UUID) (*models.CatalogRecord, apperrors.Error)
	ListFacets(ctx context.Context, catalogID catcommon.CatalogId, recordID uuid.UUID) ([]models.FacetValue, apperrors.Error)

	// External mirror bookkeeping
	ListPendingSync(ctx context.Context, catalogID catcommon.CatalogId) ([]models.SyncCandidate, apperrors.Error)
	SetSyncResult(ctx context.Context, catalogID catcommon.CatalogId, recordID uuid.UUID, syncErr string) apperrors.Error
}

// QueryManager answers the public catalog queries. All operations are pure
// reads over committed, fully reconciled state and take no lock.
type QueryManager interface {
	ListRecords(ctx context.Context, q *models.ListQuery) (*models.RecordPage, apperrors.Error)
	SearchRecords(ctx context.Context, q *models.SearchQuery) (*models.SearchResult, apperrors.Error)
	GetPublishedRecord(ctx context.Context, catalogID catcommon.CatalogId, idOrDOI string) (*models.RecordResult, apperrors.Error)
}

// ConnectionManager handles the database connection lifecycle.
type ConnectionManager interface {
	// Close returns the connection to the pool.
	Close(ctx context.Context)
}

// Database interface combines all four managers into a single interface.
// This allows for a unified database access layer while maintaining separation of concerns.
type Database interface {
	RecordStore
	StateManager
	QueryManager
	ConnectionManager
}

var pool dbmanager.Db

// Init initializes the database connection pool.
// It attempts to create a new database pool and panics on failure.
func Init() {
	ctx := log.Logger.WithContext(context.Background())
	pg := dbmanager.NewDb(ctx, "postgresql")
	if pg == nil {
		panic("unable to create db pool")
	}
	pool = pg
}

// Conn returns a new database connection from the pool.
// Returns an error if the connection cannot be established.
func Conn(ctx context.Context) (dbmanager.Conn, error) {
	if pool != nil {
		conn, err := pool.Conn(ctx)
		if err == nil {
			return conn, nil
		}
		log.Ctx(ctx).Error().Err(err).Msg("unable to get db connection")
		return nil, err
	}
	return nil, fmt.Errorf("database pool not initialized")
}

type ctxDbKeyType string

const ctxDbKey ctxDbKeyType = "DatapubCatalogDb"

// ConnCtx adds a database connection to the context.
// Returns an error if the connection cannot be established.
func ConnCtx(ctx context.Context) (context.Context, error) {
	conn, err := Conn(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, ctxDbKey, conn), nil
}

type datapubCatalogDb struct {
	RecordStore
	StateManager
	QueryManager
	ConnectionManager
}

// DB returns a new database instance from the context.
// It expects a valid database connection in the context.
// Returns nil if no connection is found in the context.
func DB(ctx context.Context) Database {
	if conn, ok := ctx.Value(ctxDbKey).(dbmanager.Conn); ok {
		rs, sm, qm, cm := postgresql.NewCatalogDb(conn)
		return &datapubCatalogDb{
			RecordStore:       rs,
			StateManager:      sm,
			QueryManager:      qm,
			ConnectionManager: cm,
		}
	}
	log.Ctx(ctx).Error().Msg("unable to get db connection from context")
	return nil
}
