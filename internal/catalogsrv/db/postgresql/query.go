package postgresql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/dberror"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/apperrors"
	"github.com/datapub/datapub/internal/common/uuid"
)

var pg = goqu.Dialect("postgres")

// searchableExpr is the effective-searchability predicate: a NULL searchable
// behaves identically to true.
func searchableExpr() exp.Expression {
	return goqu.L("(cr.searchable IS NULL OR cr.searchable)")
}

// ListRecords answers a paginated listing of a catalog's reconciled records,
// ordered ascending by reconciliation timestamp so that incremental consumers
// can resume from a watermark. The count is computed over the same predicate
// without pagination.
func (qm *queryManager) ListRecords(ctx context.Context, q *models.ListQuery) (*models.RecordPage, apperrors.Error) {
	base := buildListQuery(q)

	count, err := qm.countRecords(ctx, base)
	if err != nil {
		return nil, err
	}

	page := base.
		Select(resultColumns()...).
		Order(goqu.I("cr.timestamp").Asc()).
		Limit(uint(q.Limit)).
		Offset(uint(q.Offset))

	results, err := qm.selectResults(ctx, page)
	if err != nil {
		return nil, err
	}

	return &models.RecordPage{Count: count, Results: results}, nil
}

// SearchRecords answers a multi-dimensional search over a catalog's published,
// searchable records: full-text, facet conjunction, spatial bounding box and
// temporal interval, composed conjunctively. Results are ordered descending by
// reconciliation timestamp, or by relevance when rank ordering is requested
// with a text query. Facet counts are aggregated over the entire filtered
// candidate set before pagination, so they are invariant to limit/offset.
func (qm *queryManager) SearchRecords(ctx context.Context, q *models.SearchQuery) (*models.SearchResult, apperrors.Error) {
	base := buildSearchQuery(q)

	count, err := qm.countRecords(ctx, base)
	if err != nil {
		return nil, err
	}

	page := base.
		Select(resultColumns()...).
		Order(searchOrder(q)).
		Limit(uint(q.Limit)).
		Offset(uint(q.Offset))

	results, err := qm.selectResults(ctx, page)
	if err != nil {
		return nil, err
	}

	facets, err := qm.countFacets(ctx, base)
	if err != nil {
		return nil, err
	}

	return &models.SearchResult{Count: count, Results: results, Facets: facets}, nil
}

// GetPublishedRecord retrieves one currently published record by its UUID or,
// failing that, by DOI (case-insensitive).
func (qm *queryManager) GetPublishedRecord(ctx context.Context, catalogID catcommon.CatalogId, idOrDOI string) (*models.RecordResult, apperrors.Error) {
	base := pg.From(goqu.T("catalog_record").As("cr")).
		Where(goqu.I("cr.catalog_id").Eq(string(catalogID))).
		Where(goqu.I("cr.published").IsTrue())

	if id, errp := uuid.Parse(idOrDOI); errp == nil {
		base = base.Where(goqu.I("cr.record_id").Eq(id.String()))
	} else {
		base = base.
			Join(goqu.T("record").As("r"), goqu.On(goqu.I("r.id").Eq(goqu.I("cr.record_id")))).
			Where(goqu.L("lower(r.doi) = ?", strings.ToLower(idOrDOI)))
	}

	results, err := qm.selectResults(ctx, base.Select(resultColumns()...))
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, dberror.ErrNotFound.Msg("record not found")
	}
	return &results[0], nil
}

// buildListQuery assembles the unpaginated listing predicate. Unless retracted
// records are requested, an inner join against the published_record marker
// restricts the set to currently published records.
func buildListQuery(q *models.ListQuery) *goqu.SelectDataset {
	base := pg.From(goqu.T("catalog_record").As("cr")).
		Where(goqu.I("cr.catalog_id").Eq(string(q.CatalogID)))

	if !q.IncludeNonSearchable {
		base = base.Where(searchableExpr())
	}

	if !q.IncludeRetracted {
		base = base.Join(
			goqu.T("published_record").As("pr"),
			goqu.On(
				goqu.I("pr.catalog_id").Eq(goqu.I("cr.catalog_id")),
				goqu.I("pr.record_id").Eq(goqu.I("cr.record_id")),
			),
		)
	}

	if q.UpdatedSince != nil {
		base = base.Where(goqu.I("cr.timestamp").Gte(*q.UpdatedSince))
	}
	return base
}

// buildSearchQuery assembles the unpaginated search predicate over published,
// searchable records: full-text, facet conjunction, spatial and temporal
// filters composed conjunctively.
func buildSearchQuery(q *models.SearchQuery) *goqu.SelectDataset {
	base := pg.From(goqu.T("catalog_record").As("cr")).
		Where(goqu.I("cr.catalog_id").Eq(string(q.CatalogID))).
		Where(goqu.I("cr.published").IsTrue()).
		Where(searchableExpr())

	if text := strings.TrimSpace(q.TextQuery); text != "" {
		base = base.Where(goqu.L("cr.full_text @@ plainto_tsquery('english', ?)", text))
	}

	// One aliased self-join per requested facet/value pair: a record must
	// carry all pairs simultaneously, across distinct facet rows.
	for i, fq := range q.FacetQuery {
		alias := facetAlias(i)
		base = base.Join(
			goqu.T("catalog_record_facet").As(alias),
			goqu.On(
				goqu.I(alias+".catalog_id").Eq(goqu.I("cr.catalog_id")),
				goqu.I(alias+".record_id").Eq(goqu.I("cr.record_id")),
				goqu.I(alias+".facet").Eq(fq.Facet),
				goqu.I(alias+".value").Eq(fq.Value),
			),
		)
	}

	base = applySpatial(base, q.Spatial)
	base = applyTemporal(base, q.Temporal)
	return base
}

// searchOrder picks the result ordering. Rank ordering uses ts_rank_cd with
// normalization 5 (1, log document length, plus 4, mean harmonic extent
// distance) and falls back to timestamp when there is no text query to rank
// against.
func searchOrder(q *models.SearchQuery) exp.OrderedExpression {
	if text := strings.TrimSpace(q.TextQuery); q.SortByRank && text != "" {
		return goqu.L("ts_rank_cd(cr.full_text, plainto_tsquery('english', ?), 5)", text).Desc()
	}
	return goqu.I("cr.timestamp").Desc()
}

func resultColumns() []any {
	return []any{
		goqu.I("cr.record_id"),
		goqu.I("cr.published"),
		goqu.I("cr.searchable"),
		goqu.I("cr.timestamp"),
		goqu.I("cr.published_record"),
	}
}

func facetAlias(i int) string {
	return "crf" + string(rune('a'+i%26)) + string(rune('a'+(i/26)%26))
}

func applySpatial(ds *goqu.SelectDataset, f *models.SpatialFilter) *goqu.SelectDataset {
	if f.Empty() {
		return ds
	}
	if f.ExclusiveRegion {
		// containment: the record's envelope must lie entirely inside the box
		if f.North != nil {
			ds = ds.Where(goqu.I("cr.spatial_north").Lte(*f.North))
		}
		if f.South != nil {
			ds = ds.Where(goqu.I("cr.spatial_south").Gte(*f.South))
		}
		if f.East != nil {
			ds = ds.Where(goqu.I("cr.spatial_east").Lte(*f.East))
		}
		if f.West != nil {
			ds = ds.Where(goqu.I("cr.spatial_west").Gte(*f.West))
		}
		return ds
	}
	// intersection: the record's envelope overlaps the box. Records without
	// spatial metadata have NULL bounds and never match.
	if f.North != nil {
		ds = ds.Where(goqu.I("cr.spatial_south").Lte(*f.North))
	}
	if f.South != nil {
		ds = ds.Where(goqu.I("cr.spatial_north").Gte(*f.South))
	}
	if f.East != nil {
		ds = ds.Where(goqu.I("cr.spatial_west").Lte(*f.East))
	}
	if f.West != nil {
		ds = ds.Where(goqu.I("cr.spatial_east").Gte(*f.West))
	}
	return ds
}

func applyTemporal(ds *goqu.SelectDataset, f *models.TemporalFilter) *goqu.SelectDataset {
	if f.Empty() {
		return ds
	}
	if f.ExclusiveInterval {
		// containment: the record's interval must lie entirely inside the query
		// interval; a record with no end is instantaneous at its start
		if f.Start != nil {
			ds = ds.Where(goqu.I("cr.temporal_start").Gte(*f.Start))
		}
		if f.End != nil {
			ds = ds.Where(goqu.L("COALESCE(cr.temporal_end, cr.temporal_start) <= ?", *f.End))
		}
		return ds
	}
	// overlap
	if f.Start != nil {
		ds = ds.Where(goqu.L("COALESCE(cr.temporal_end, cr.temporal_start) >= ?", *f.Start))
	}
	if f.End != nil {
		ds = ds.Where(goqu.I("cr.temporal_start").Lte(*f.End))
	}
	return ds
}

func (qm *queryManager) countRecords(ctx context.Context, base *goqu.SelectDataset) (int64, apperrors.Error) {
	counted := pg.From(base.Select(goqu.I("cr.record_id")).As("flt")).
		Select(goqu.COUNT(goqu.Star()))

	query, args, errq := counted.Prepared(true).ToSQL()
	if errq != nil {
		return 0, dberror.ErrDatabase.Err(errq)
	}

	var count int64
	if errdb := qm.conn().QueryRowContext(ctx, query, args...).Scan(&count); errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to count records")
		return 0, dberror.ErrDatabase.Err(errdb)
	}
	return count, nil
}

func (qm *queryManager) selectResults(ctx context.Context, ds *goqu.SelectDataset) ([]models.RecordResult, apperrors.Error) {
	query, args, errq := ds.Prepared(true).ToSQL()
	if errq != nil {
		return nil, dberror.ErrDatabase.Err(errq)
	}

	rows, errdb := qm.conn().QueryContext(ctx, query, args...)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to select records")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	results := []models.RecordResult{}
	for rows.Next() {
		var r models.RecordResult
		var recordID uuid.UUID
		var searchable sql.NullBool
		var payload []byte
		if errdb := rows.Scan(&recordID, &r.Published, &searchable, &r.Timestamp, &payload); errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		r.RecordID = recordID.String()
		r.Searchable = !searchable.Valid || searchable.Bool
		if r.Published {
			r.Record = payload
		}
		results = append(results, r)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return results, nil
}

// buildFacetCountQuery aggregates facet/value counts across the filtered
// candidate set, joining the facet table against the unpaginated predicate.
// No limit or offset is applied, so the aggregate is pagination-independent.
func buildFacetCountQuery(base *goqu.SelectDataset) *goqu.SelectDataset {
	return pg.From(base.Select(goqu.I("cr.catalog_id"), goqu.I("cr.record_id")).As("flt")).
		Join(
			goqu.T("catalog_record_facet").As("f"),
			goqu.On(
				goqu.I("f.catalog_id").Eq(goqu.I("flt.catalog_id")),
				goqu.I("f.record_id").Eq(goqu.I("flt.record_id")),
			),
		).
		Select(goqu.I("f.facet"), goqu.I("f.value"), goqu.COUNT(goqu.Star())).
		GroupBy(goqu.I("f.facet"), goqu.I("f.value")).
		Order(goqu.I("f.facet").Asc(), goqu.I("f.value").Asc())
}

func (qm *queryManager) countFacets(ctx context.Context, base *goqu.SelectDataset) ([]models.FacetCount, apperrors.Error) {
	query, args, errq := buildFacetCountQuery(base).Prepared(true).ToSQL()
	if errq != nil {
		return nil, dberror.ErrDatabase.Err(errq)
	}

	rows, errdb := qm.conn().QueryContext(ctx, query, args...)
	if errdb != nil {
		log.Ctx(ctx).Error().Err(errdb).Msg("failed to aggregate facets")
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	defer rows.Close()

	facets := []models.FacetCount{}
	for rows.Next() {
		var f models.FacetCount
		if errdb := rows.Scan(&f.Facet, &f.Value, &f.Count); errdb != nil {
			return nil, dberror.ErrDatabase.Err(errdb)
		}
		facets = append(facets, f)
	}
	if errdb := rows.Err(); errdb != nil {
		return nil, dberror.ErrDatabase.Err(errdb)
	}
	return facets, nil
}
