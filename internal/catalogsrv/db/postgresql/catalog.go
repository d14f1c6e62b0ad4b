package postgresql

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/dberror"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/apperrors"
)

// GetCatalog retrieves a catalog by its ID.
func (sm *stateManager) GetCatalog(ctx context.Context, catalogID catcommon.CatalogId) (*models.Catalog, apperrors.Error) {
	query := `
		SELECT id, url, data, timestamp
		FROM catalog
		WHERE id = $1;
	`
	row := sm.conn().QueryRowContext(ctx, query, catalogID)

	var catalog models.Catalog
	errdb := row.Scan(&catalog.ID, &catalog.Url, &catalog.Data, &catalog.Timestamp)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			log.Ctx(ctx).Info().Str("catalog_id", string(catalogID)).Msg("catalog not found")
			return nil, dberror.ErrInvalidCatalog.Msg("catalog not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Str("catalog_id", string(catalogID)).Msg("failed to retrieve catalog")
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return &catalog, nil
}

// UpsertCatalog creates or updates a catalog row. Used to seed the configured
// catalogs into a deployment.
func (sm *stateManager) UpsertCatalog(ctx context.Context, catalog *models.Catalog) apperrors.Error {
	query := `
		INSERT INTO catalog (id, url, data, timestamp)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE
		SET url = EXCLUDED.url,
		    data = EXCLUDED.data,
		    timestamp = now();
	`
	if _, errdb := sm.conn().ExecContext(ctx, query, catalog.ID, catalog.Url, catalog.Data); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Str("catalog_id", string(catalog.ID)).Msg("failed to upsert catalog")
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}

// ListCatalogs lists all catalogs with their published record counts.
func (sm *stateManager) ListCatalogs(ctx context.Context) ([]models.CatalogSummary, apperrors.Error) {
	query := `
		SELECT c.id, c.url, count(cr.record_id)
		FROM catalog c
		LEFT JOIN catalog_record cr
		  ON cr.catalog_id = c.id AND cr.published
		GROUP BY c.id, c.url
		ORDER BY c.id;
	`
	rows, errdb := sm.conn().QueryContext(ctx, query)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list catalogs")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	catalogs := []models.CatalogSummary{}
	for rows.Next() {
		var c models.CatalogSummary
		if errdb := rows.Scan(&c.ID, &c.Url, &c.RecordCount); errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		catalogs = append(catalogs, c)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}

	return catalogs, nil
}
