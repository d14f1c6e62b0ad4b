package publish

import (
	"context"
	"database/sql"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
)

// RunStats summarizes one catalog's publication pass.
type RunStats struct {
	Catalog    catcommon.CatalogId `json:"catalog"`
	Evaluated  int                 `json:"evaluated"`
	Published  int                 `json:"published"`
	Retracted  int                 `json:"retracted"`
	Errors     int                 `json:"errors"`
	Synced     int                 `json:"synced"`
	SyncFailed int                 `json:"sync_failed"`
}

// reconcile evaluates each snapshot entry and writes the resulting catalog
// state. Each record commits independently: a failing record is logged and
// counted without affecting the rest of the pass.
func reconcile(ctx context.Context, catalogID catcommon.CatalogId, entries []models.SnapshotEntry, ev Evaluator) RunStats {
	stats := RunStats{Catalog: catalogID}
	for i := range entries {
		e := &entries[i]
		d := ev.Evaluate(e)
		stats.Evaluated++

		cr := &models.CatalogRecord{
			CatalogID: catalogID,
			RecordID:  e.Record.ID,
			Published: d.Publish,
			Reason:    strings.Join(d.Reasons, "; "),
		}
		if d.Publish {
			cr.PublishedRecord = d.Payload
			cr.FullText = d.FullText
			if !d.Searchable {
				cr.Searchable = sql.NullBool{Bool: false, Valid: true}
			}
			if d.Spatial != nil {
				cr.SpatialNorth = &d.Spatial.North
				cr.SpatialSouth = &d.Spatial.South
				cr.SpatialEast = &d.Spatial.East
				cr.SpatialWest = &d.Spatial.West
			}
			if d.Temporal != nil {
				start := d.Temporal.Start
				cr.TemporalStart = &start
				cr.TemporalEnd = d.Temporal.End
			}
		}

		doi := ""
		if e.Record.DOI.Valid {
			doi = e.Record.DOI.String
		}

		if err := db.DB(ctx).UpsertCatalogRecord(ctx, cr, doi, d.Facets); err != nil {
			log.Ctx(ctx).Error().
				Err(ErrReconciliation.Err(err)).
				Str("record_id", e.Record.ID.String()).
				Msg("failed to reconcile record")
			stats.Errors++
			continue
		}
		if d.Publish {
			stats.Published++
		} else {
			stats.Retracted++
		}
	}
	return stats
}
