package publish

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db"
	"github.com/datapub/datapub/internal/common/apperrors"
)

// Mirror pushes confirmed catalog state to an external registry after
// reconciliation.
type Mirror interface {
	Sync(ctx context.Context, catalogID catcommon.CatalogId) (synced, failed int, err apperrors.Error)
}

// Pipeline runs the publication pass for a set of catalogs. Catalogs are
// processed independently and in order: a failure in one catalog's run never
// blocks the others.
type Pipeline struct {
	// Catalogs to run, in order.
	Catalogs []catcommon.CatalogId
	// Full forces re-evaluation of every record instead of only those stale
	// relative to their reconciled state.
	Full bool
	// Since, when set, restricts the snapshot to records modified at or after
	// the given time, overriding the staleness predicate.
	Since *time.Time
	// Mirror synchronizes externally mirrored catalogs; nil disables
	// synchronization.
	Mirror Mirror
}

// Run executes the pipeline and returns per-catalog statistics.
func (p *Pipeline) Run(ctx context.Context) []RunStats {
	stats := make([]RunStats, 0, len(p.Catalogs))
	for _, id := range p.Catalogs {
		stats = append(stats, p.runCatalog(ctx, id))
	}
	return stats
}

func (p *Pipeline) runCatalog(ctx context.Context, id catcommon.CatalogId) RunStats {
	logger := log.Ctx(ctx).With().Str("catalog", string(id)).Logger()
	ctx = logger.WithContext(ctx)
	ctx = catcommon.WithCatalogId(ctx, id)

	stats := RunStats{Catalog: id}

	catalog, err := db.DB(ctx).GetCatalog(ctx, id)
	if err != nil {
		logger.Error().Err(err).Msg("unable to load catalog")
		stats.Errors++
		return stats
	}

	ev, err := NewEvaluator(catalog)
	if err != nil {
		logger.Error().Err(err).Msg("unable to resolve evaluator")
		stats.Errors++
		return stats
	}

	entries, err := db.DB(ctx).RecordSnapshot(ctx, id, p.Since, p.Full)
	if err != nil {
		// a consistency failure invalidates the whole pass for this catalog;
		// the next run starts over from the staleness predicate
		logger.Error().Err(err).Msg("snapshot failed, skipping catalog")
		stats.Errors++
		return stats
	}
	logger.Info().Int("records", len(entries)).Msg("snapshot complete")

	stats = reconcile(ctx, id, entries, ev)

	if ev.External() && p.Mirror != nil {
		synced, failed, err := p.Mirror.Sync(ctx, id)
		stats.Synced = synced
		stats.SyncFailed = failed
		if err != nil {
			logger.Error().Err(err).Msg("mirror synchronization failed")
			stats.Errors++
		}
	}

	logger.Info().
		Int("evaluated", stats.Evaluated).
		Int("published", stats.Published).
		Int("retracted", stats.Retracted).
		Int("errors", stats.Errors).
		Int("synced", stats.Synced).
		Int("sync_failed", stats.SyncFailed).
		Msg("publication run complete")
	return stats
}
