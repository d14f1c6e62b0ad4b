package postgresql

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/dberror"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/apperrors"
	"github.com/datapub/datapub/internal/common/uuid"
)

// UpsertCatalogRecord reconciles one record's state for a catalog in a single
// transaction: the catalog_record row is upserted, the published_record marker
// is created or removed according to cr.Published, and the facet rows are
// replaced wholesale. A reader therefore never observes the published flag
// without its matching facets, or vice versa. Rows are never deleted; a
// retraction leaves the row with published=false. Sync bookkeeping resets
// only when the published state or payload actually changed, so a full
// re-evaluation does not requeue already-mirrored records.
func (sm *stateManager) UpsertCatalogRecord(ctx context.Context, cr *models.CatalogRecord, doi string, facets []models.FacetValue) (err apperrors.Error) {
	tx, errdb := sm.conn().BeginTx(ctx, &sql.TxOptions{})
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to start transaction")
		return dberror.ErrDatabase.Err(errdb)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
				log.Ctx(ctx).Error().Err(rollbackErr).Msg("failed to rollback transaction")
			}
		}
	}()

	query := `
		INSERT INTO catalog_record (
			catalog_id, record_id, published, searchable, reason, timestamp,
			published_record, full_text,
			spatial_north, spatial_south, spatial_east, spatial_west,
			temporal_start, temporal_end,
			synced, error, error_count)
		VALUES ($1, $2, $3, $4, $5, now(),
			$6, to_tsvector('english', $7),
			$8, $9, $10, $11,
			$12, $13,
			false, NULL, 0)
		ON CONFLICT (catalog_id, record_id) DO UPDATE SET
			published = EXCLUDED.published,
			searchable = EXCLUDED.searchable,
			reason = EXCLUDED.reason,
			timestamp = now(),
			published_record = EXCLUDED.published_record,
			full_text = EXCLUDED.full_text,
			spatial_north = EXCLUDED.spatial_north,
			spatial_south = EXCLUDED.spatial_south,
			spatial_east = EXCLUDED.spatial_east,
			spatial_west = EXCLUDED.spatial_west,
			temporal_start = EXCLUDED.temporal_start,
			temporal_end = EXCLUDED.temporal_end,
			synced = CASE
				WHEN catalog_record.published IS DISTINCT FROM EXCLUDED.published
					OR catalog_record.published_record IS DISTINCT FROM EXCLUDED.published_record
				THEN false ELSE catalog_record.synced END,
			error = CASE
				WHEN catalog_record.published IS DISTINCT FROM EXCLUDED.published
					OR catalog_record.published_record IS DISTINCT FROM EXCLUDED.published_record
				THEN NULL ELSE catalog_record.error END,
			error_count = CASE
				WHEN catalog_record.published IS DISTINCT FROM EXCLUDED.published
					OR catalog_record.published_record IS DISTINCT FROM EXCLUDED.published_record
				THEN 0 ELSE catalog_record.error_count END
		RETURNING timestamp;
	`
	row := tx.QueryRowContext(ctx, query,
		cr.CatalogID, cr.RecordID, cr.Published, cr.Searchable, cr.Reason,
		[]byte(cr.PublishedRecord), cr.FullText,
		cr.SpatialNorth, cr.SpatialSouth, cr.SpatialEast, cr.SpatialWest,
		cr.TemporalStart, cr.TemporalEnd,
	)
	if errdb := row.Scan(&cr.Timestamp); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).
			Str("catalog_id", string(cr.CatalogID)).
			Str("record_id", cr.RecordID.String()).
			Msg("failed to upsert catalog record")
		return dberror.ErrDatabase.Err(errdb)
	}

	if cr.Published {
		err = sm.upsertMarkerWithTransaction(ctx, tx, cr.CatalogID, cr.RecordID, doi)
	} else {
		err = sm.removeMarkerWithTransaction(ctx, tx, cr.CatalogID, cr.RecordID)
	}
	if err != nil {
		return err
	}

	if err = sm.replaceFacetsWithTransaction(ctx, tx, cr.CatalogID, cr.RecordID, facets); err != nil {
		return err
	}

	if errdb := tx.Commit(); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to commit transaction")
		return dberror.ErrDatabase.Err(errdb)
	}

	return nil
}

// upsertMarkerWithTransaction ensures the published_record marker exists.
// First-publication timestamps are preserved; doi_published is set the first
// time the record is published with a DOI.
func (sm *stateManager) upsertMarkerWithTransaction(ctx context.Context, tx *sql.Tx, catalogID catcommon.CatalogId, recordID uuid.UUID, doi string) apperrors.Error {
	query := `
		INSERT INTO published_record (catalog_id, record_id, doi, id_published, doi_published)
		VALUES ($1, $2, NULLIF($3, ''), now(), CASE WHEN $3 <> '' THEN now() END)
		ON CONFLICT (catalog_id, record_id) DO UPDATE SET
			doi = NULLIF($3, ''),
			doi_published = CASE
				WHEN NULLIF($3, '') IS NULL THEN NULL
				WHEN published_record.doi_published IS NULL THEN now()
				ELSE published_record.doi_published
			END;
	`
	if _, errdb := tx.ExecContext(ctx, query, catalogID, recordID, doi); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Str("record_id", recordID.String()).Msg("failed to upsert published record marker")
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}

// removeMarkerWithTransaction removes the published_record marker if present,
// turning the catalog_record row into a retraction stub.
func (sm *stateManager) removeMarkerWithTransaction(ctx context.Context, tx *sql.Tx, catalogID catcommon.CatalogId, recordID uuid.UUID) apperrors.Error {
	query := `
		DELETE FROM published_record
		WHERE catalog_id = $1 AND record_id = $2;
	`
	if _, errdb := tx.ExecContext(ctx, query, catalogID, recordID); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Str("record_id", recordID.String()).Msg("failed to remove published record marker")
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}

// replaceFacetsWithTransaction replaces the record's facet rows. Delete then
// insert, never incremental diffing: stale facet values must not survive.
func (sm *stateManager) replaceFacetsWithTransaction(ctx context.Context, tx *sql.Tx, catalogID catcommon.CatalogId, recordID uuid.UUID, facets []models.FacetValue) apperrors.Error {
	deleteQuery := `
		DELETE FROM catalog_record_facet
		WHERE catalog_id = $1 AND record_id = $2;
	`
	if _, errdb := tx.ExecContext(ctx, deleteQuery, catalogID, recordID); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Str("record_id", recordID.String()).Msg("failed to delete facet rows")
		return dberror.ErrDatabase.Err(errdb)
	}

	insertQuery := `
		INSERT INTO catalog_record_facet (catalog_id, record_id, facet, value)
		VALUES ($1, $2, $3, $4);
	`
	for _, f := range facets {
		if _, errdb := tx.ExecContext(ctx, insertQuery, catalogID, recordID, f.Facet, f.Value); errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Str("record_id", recordID.String()).Str("facet", f.Facet).Msg("failed to insert facet row")
			return dberror.ErrDatabase.Err(errdb)
		}
	}
	return nil
}

// GetCatalogRecord retrieves one reconciled catalog record.
func (sm *stateManager) GetCatalogRecord(ctx context.Context, catalogID catcommon.CatalogId, recordID uuid.UUID) (*models.CatalogRecord, apperrors.Error) {
	query := `
		SELECT catalog_id, record_id, published, searchable, reason, timestamp,
		       published_record,
		       spatial_north, spatial_south, spatial_east, spatial_west,
		       temporal_start, temporal_end,
		       synced, error, error_count
		FROM catalog_record
		WHERE catalog_id = $1 AND record_id = $2;
	`
	row := sm.conn().QueryRowContext(ctx, query, catalogID, recordID)

	var cr models.CatalogRecord
	var payload []byte
	errdb := row.Scan(
		&cr.CatalogID, &cr.RecordID, &cr.Published, &cr.Searchable, &cr.Reason, &cr.Timestamp,
		&payload,
		&cr.SpatialNorth, &cr.SpatialSouth, &cr.SpatialEast, &cr.SpatialWest,
		&cr.TemporalStart, &cr.TemporalEnd,
		&cr.Synced, &cr.Error, &cr.ErrorCount,
	)
	if errdb != nil {
		if errdb == sql.ErrNoRows {
			return nil, dberror.ErrNotFound.Msg("catalog record not found")
		}
		log.Ctx(ctx).Error().Err(errdb).Str("record_id", recordID.String()).Msg("failed to retrieve catalog record")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	cr.PublishedRecord = payload

	return &cr, nil
}

// ListFacets returns the facet rows for one catalog record.
func (sm *stateManager) ListFacets(ctx context.Context, catalogID catcommon.CatalogId, recordID uuid.UUID) ([]models.FacetValue, apperrors.Error) {
	query := `
		SELECT facet, value
		FROM catalog_record_facet
		WHERE catalog_id = $1 AND record_id = $2
		ORDER BY facet, value;
	`
	rows, errdb := sm.conn().QueryContext(ctx, query, catalogID, recordID)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list facet rows")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	facets := []models.FacetValue{}
	for rows.Next() {
		var f models.FacetValue
		if errdb := rows.Scan(&f.Facet, &f.Value); errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		facets = append(facets, f)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return facets, nil
}

// ListPendingSync returns the records whose local published state has not been
// confirmed against the external mirror, oldest first.
func (sm *stateManager) ListPendingSync(ctx context.Context, catalogID catcommon.CatalogId) ([]models.SyncCandidate, apperrors.Error) {
	query := `
		SELECT cr.catalog_id, cr.record_id, cr.published, cr.published_record,
		       COALESCE(r.doi, ''), cr.error_count
		FROM catalog_record cr
		LEFT JOIN record r ON r.id = cr.record_id
		WHERE cr.catalog_id = $1 AND cr.synced IS NOT TRUE
		ORDER BY cr.timestamp;
	`
	rows, errdb := sm.conn().QueryContext(ctx, query, catalogID)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to list pending sync records")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	candidates := []models.SyncCandidate{}
	for rows.Next() {
		var c models.SyncCandidate
		var payload []byte
		if errdb := rows.Scan(&c.CatalogID, &c.RecordID, &c.Published, &payload, &c.DOI, &c.ErrorCount); errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		c.Payload = payload
		candidates = append(candidates, c)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return candidates, nil
}

// SetSyncResult records the outcome of one mirror synchronization attempt.
// An empty syncErr marks the record synced; otherwise the error is stored and
// the attempt count incremented, leaving the record pending for the next run.
func (sm *stateManager) SetSyncResult(ctx context.Context, catalogID catcommon.CatalogId, recordID uuid.UUID, syncErr string) apperrors.Error {
	query := `
		UPDATE catalog_record
		SET synced = ($3 = ''),
		    error = NULLIF($3, ''),
		    error_count = CASE WHEN $3 = '' THEN 0 ELSE error_count + 1 END
		WHERE catalog_id = $1 AND record_id = $2;
	`
	if _, errdb := sm.conn().ExecContext(ctx, query, catalogID, recordID, syncErr); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Str("record_id", recordID.String()).Msg("failed to set sync result")
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}
