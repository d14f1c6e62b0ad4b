package postgresql

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/dberror"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/apperrors"
	"github.com/datapub/datapub/internal/common/uuid"
)

// RecordSnapshot returns a consistent point-in-time projection of every record
// that is a candidate for (re-)publication in the given catalog. With full set,
// all records are returned; with since set, records modified at or after the
// watermark; otherwise records whose catalog_record row is missing or stale
// relative to the record's own timestamp.
//
// All reads run inside a single repeatable-read, read-only transaction so that
// cross-record state (parent tags, child references) cannot tear under
// concurrent writers. If the transaction cannot be started at that isolation
// level the whole run must abort; ErrConsistency is returned.
func (rs *recordStore) RecordSnapshot(ctx context.Context, catalogID catcommon.CatalogId, since *time.Time, full bool) ([]models.SnapshotEntry, apperrors.Error) {
	tx, errdb := rs.conn().BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to start snapshot transaction")
		return nil, dberror.ErrConsistency.Err(errdb)
	}
	defer tx.Rollback()

	entries, err := rs.loadEntries(ctx, tx, catalogID, since, full)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return entries, nil
	}

	recordIDs := make([]string, 0, len(entries))
	collectionIDs := make([]string, 0, len(entries))
	byRecord := make(map[uuid.UUID]*models.SnapshotEntry, len(entries))
	byCollection := make(map[uuid.UUID][]*models.SnapshotEntry)
	for i := range entries {
		e := &entries[i]
		byRecord[e.Record.ID] = e
		byCollection[e.Record.CollectionID] = append(byCollection[e.Record.CollectionID], e)
		recordIDs = append(recordIDs, e.Record.ID.String())
		collectionIDs = append(collectionIDs, e.Record.CollectionID.String())
	}

	if err := rs.loadRecordTags(ctx, tx, recordIDs, byRecord); err != nil {
		return nil, err
	}
	if err := rs.loadCollectionTags(ctx, tx, collectionIDs, byCollection); err != nil {
		return nil, err
	}
	if err := rs.loadChildren(ctx, tx, recordIDs, byRecord); err != nil {
		return nil, err
	}

	if errdb := tx.Commit(); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to commit snapshot transaction")
		return nil, dberror.ErrConsistency.Err(errdb)
	}

	return entries, nil
}

func (rs *recordStore) loadEntries(ctx context.Context, tx *sql.Tx, catalogID catcommon.CatalogId, since *time.Time, full bool) ([]models.SnapshotEntry, apperrors.Error) {
	query := `
		SELECT r.id, r.doi, r.sid, r.metadata, r.validity, r.timestamp,
		       r.collection_id, r.parent_id, c.key, c.name, p.doi
		FROM record r
		JOIN collection c ON c.id = r.collection_id
		LEFT JOIN record p ON p.id = r.parent_id
	`
	var args []any
	switch {
	case full:
		// no predicate: full resync
	case since != nil:
		query += ` WHERE r.timestamp >= $1`
		args = append(args, *since)
	default:
		query += `
		LEFT JOIN catalog_record cr
		  ON cr.catalog_id = $1 AND cr.record_id = r.id
		WHERE cr.record_id IS NULL OR cr.timestamp < r.timestamp`
		args = append(args, catalogID)
	}

	rows, errdb := tx.QueryContext(ctx, query, args...)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to select snapshot records")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	var entries []models.SnapshotEntry
	for rows.Next() {
		var e models.SnapshotEntry
		var parentDOI sql.NullString
		errdb := rows.Scan(
			&e.Record.ID, &e.Record.DOI, &e.Record.SID, &e.Record.Metadata,
			&e.Record.Validity, &e.Record.Timestamp, &e.Record.CollectionID,
			&e.Record.ParentID, &e.CollectionKey, &e.CollectionName, &parentDOI,
		)
		if errdb != nil {
			log.Ctx(ctx).Error().Err(errdb).Msg("failed to scan snapshot record")
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		e.ParentDOI = parentDOI.String
		entries = append(entries, e)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return entries, nil
}

func (rs *recordStore) loadRecordTags(ctx context.Context, tx *sql.Tx, recordIDs []string, byRecord map[uuid.UUID]*models.SnapshotEntry) apperrors.Error {
	query := `
		SELECT rt.record_id, rt.tag_id, rt.data, rt.timestamp
		FROM record_tag rt
		WHERE rt.record_id = ANY($1::uuid[])
	`
	rows, errdb := tx.QueryContext(ctx, query, pq.Array(recordIDs))
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to select record tags")
		return dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	for rows.Next() {
		var recordID uuid.UUID
		tag := models.TagInstance{Type: catcommon.TagTypeRecord}
		if errdb := rows.Scan(&recordID, &tag.TagID, &tag.Data, &tag.Timestamp); errdb != nil {
			return dberror.ErrDatabase.Err(errdb)
		}
		if e, ok := byRecord[recordID]; ok {
			e.Tags = append(e.Tags, tag)
		}
	}
	return wrapRowsErr(rows)
}

func (rs *recordStore) loadCollectionTags(ctx context.Context, tx *sql.Tx, collectionIDs []string, byCollection map[uuid.UUID][]*models.SnapshotEntry) apperrors.Error {
	query := `
		SELECT ct.collection_id, ct.tag_id, ct.data, ct.timestamp
		FROM collection_tag ct
		WHERE ct.collection_id = ANY($1::uuid[])
	`
	rows, errdb := tx.QueryContext(ctx, query, pq.Array(collectionIDs))
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to select collection tags")
		return dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	for rows.Next() {
		var collectionID uuid.UUID
		tag := models.TagInstance{Type: catcommon.TagTypeCollection}
		if errdb := rows.Scan(&collectionID, &tag.TagID, &tag.Data, &tag.Timestamp); errdb != nil {
			return dberror.ErrDatabase.Err(errdb)
		}
		for _, e := range byCollection[collectionID] {
			e.Tags = append(e.Tags, tag)
		}
	}
	return wrapRowsErr(rows)
}

func (rs *recordStore) loadChildren(ctx context.Context, tx *sql.Tx, recordIDs []string, byRecord map[uuid.UUID]*models.SnapshotEntry) apperrors.Error {
	query := `
		SELECT r.parent_id, r.id, r.doi
		FROM record r
		WHERE r.parent_id = ANY($1::uuid[])
	`
	rows, errdb := tx.QueryContext(ctx, query, pq.Array(recordIDs))
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to select child records")
		return dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	for rows.Next() {
		var parentID uuid.UUID
		var child models.ChildRef
		var doi sql.NullString
		if errdb := rows.Scan(&parentID, &child.RecordID, &doi); errdb != nil {
			return dberror.ErrDatabase.Err(errdb)
		}
		child.DOI = doi.String
		if e, ok := byRecord[parentID]; ok {
			e.Children = append(e.Children, child)
		}
	}
	return wrapRowsErr(rows)
}

func wrapRowsErr(rows *sql.Rows) apperrors.Error {
	if errdb := rows.Err(); errdb != nil {
		return dberror.ErrDatabase.Err(errdb)
	}
	return nil
}
