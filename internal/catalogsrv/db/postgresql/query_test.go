package postgresql

import (
	"strings"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
)

func renderSQL(t *testing.T, ds *goqu.SelectDataset) (string, []any) {
	t.Helper()
	sql, args, err := ds.Prepared(true).ToSQL()
	require.NoError(t, err)
	return sql, args
}

func TestListQueryRequiresPublishedMarker(t *testing.T) {
	sql, args := renderSQL(t, buildListQuery(&models.ListQuery{
		CatalogID: catcommon.CatalogSAEON,
	}))

	// without include_retracted the marker join restricts to published rows
	assert.Contains(t, sql, "published_record")
	assert.Contains(t, sql, "cr.searchable IS NULL OR cr.searchable")
	assert.Contains(t, args, "SAEON")
}

func TestListQueryIncludesRetractionStubs(t *testing.T) {
	sql, _ := renderSQL(t, buildListQuery(&models.ListQuery{
		CatalogID:        catcommon.CatalogSAEON,
		IncludeRetracted: true,
	}))
	assert.NotContains(t, sql, "published_record")
}

func TestListQueryNonSearchable(t *testing.T) {
	sql, _ := renderSQL(t, buildListQuery(&models.ListQuery{
		CatalogID:            catcommon.CatalogSAEON,
		IncludeNonSearchable: true,
	}))
	assert.NotContains(t, sql, "searchable")
}

func TestListQueryUpdatedSince(t *testing.T) {
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	sql, args := renderSQL(t, buildListQuery(&models.ListQuery{
		CatalogID:    catcommon.CatalogSAEON,
		UpdatedSince: &since,
	}))
	assert.Contains(t, sql, "timestamp")
	assert.Contains(t, args, since)
}

func TestSearchQueryBasePredicate(t *testing.T) {
	sql, args := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogMIMS,
	}))

	assert.Contains(t, sql, `"published" IS TRUE`)
	assert.Contains(t, sql, "cr.searchable IS NULL OR cr.searchable")
	assert.NotContains(t, sql, "plainto_tsquery")
	assert.Contains(t, args, "MIMS")
}

func TestSearchQueryFullText(t *testing.T) {
	sql, args := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		TextQuery: "mooring current",
	}))
	assert.Contains(t, sql, "plainto_tsquery")
	assert.Contains(t, args, "mooring current")

	// whitespace-only text is no filter at all
	sql, _ = renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		TextQuery: "   ",
	}))
	assert.NotContains(t, sql, "plainto_tsquery")
}

func TestSearchQueryFacetConjunction(t *testing.T) {
	sql, args := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogMIMS,
		FacetQuery: []models.FacetValue{
			{Facet: "Instrument", Value: "ADCP"},
			{Facet: "Instrument", Value: "CTD"},
		},
	}))

	// one self-join per pair, under distinct aliases, so a record must carry
	// both values in distinct facet rows
	assert.Equal(t, 2, strings.Count(sql, "catalog_record_facet"))
	assert.Contains(t, sql, facetAlias(0))
	assert.Contains(t, sql, facetAlias(1))
	assert.Contains(t, args, "ADCP")
	assert.Contains(t, args, "CTD")
}

func TestFacetAliasesAreDistinct(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 52; i++ {
		a := facetAlias(i)
		assert.False(t, seen[a], "alias %q repeated at %d", a, i)
		seen[a] = true
	}
}

func TestSearchQuerySpatialIntersection(t *testing.T) {
	n, s, e, w := -30.0, -36.0, 30.0, 20.0
	sql, args := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		Spatial:   &models.SpatialFilter{North: &n, South: &s, East: &e, West: &w},
	}))

	// intersection compares opposite edges: record south against query north
	assert.Contains(t, sql, `"spatial_south" <=`)
	assert.Contains(t, sql, `"spatial_north" >=`)
	assert.Contains(t, sql, `"spatial_west" <=`)
	assert.Contains(t, sql, `"spatial_east" >=`)
	assert.Contains(t, args, n)
	assert.Contains(t, args, w)
}

func TestSearchQuerySpatialContainment(t *testing.T) {
	n, s := -30.0, -36.0
	sql, _ := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		Spatial:   &models.SpatialFilter{North: &n, South: &s, ExclusiveRegion: true},
	}))

	// containment compares like edges: record north inside query north
	assert.Contains(t, sql, `"spatial_north" <=`)
	assert.Contains(t, sql, `"spatial_south" >=`)
	// unset bounds add no predicate
	assert.NotContains(t, sql, "spatial_east")
	assert.NotContains(t, sql, "spatial_west")
}

func TestSearchQueryTemporalOverlap(t *testing.T) {
	start := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	sql, args := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		Temporal:  &models.TemporalFilter{Start: &start, End: &end},
	}))

	// a record with no end is instantaneous at its start
	assert.Contains(t, sql, "COALESCE(cr.temporal_end, cr.temporal_start) >=")
	assert.Contains(t, sql, `"temporal_start" <=`)
	assert.Contains(t, args, start)
	assert.Contains(t, args, end)
}

func TestSearchQueryTemporalContainment(t *testing.T) {
	start := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	sql, _ := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		Temporal:  &models.TemporalFilter{Start: &start, End: &end, ExclusiveInterval: true},
	}))

	assert.Contains(t, sql, `"temporal_start" >=`)
	assert.Contains(t, sql, "COALESCE(cr.temporal_end, cr.temporal_start) <=")
}

func TestEmptyFiltersAddNoPredicate(t *testing.T) {
	plain, _ := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
	}))
	filtered, _ := renderSQL(t, buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		Spatial:   &models.SpatialFilter{},
		Temporal:  &models.TemporalFilter{},
	}))
	assert.Equal(t, plain, filtered)
}

func TestSearchOrderByRank(t *testing.T) {
	q := &models.SearchQuery{
		CatalogID:  catcommon.CatalogSAEON,
		TextQuery:  "mooring",
		SortByRank: true,
	}
	sql, args := renderSQL(t, buildSearchQuery(q).Select(resultColumns()...).Order(searchOrder(q)))
	assert.Contains(t, sql, "ts_rank_cd")
	assert.Contains(t, args, "mooring")

	// rank ordering without a text query falls back to timestamp
	q = &models.SearchQuery{CatalogID: catcommon.CatalogSAEON, SortByRank: true}
	sql, _ = renderSQL(t, buildSearchQuery(q).Select(resultColumns()...).Order(searchOrder(q)))
	assert.NotContains(t, sql, "ts_rank_cd")
	assert.Contains(t, sql, `"timestamp" DESC`)

	// default ordering is timestamp even when there is a text query
	q = &models.SearchQuery{CatalogID: catcommon.CatalogSAEON, TextQuery: "mooring"}
	sql, _ = renderSQL(t, buildSearchQuery(q).Select(resultColumns()...).Order(searchOrder(q)))
	assert.NotContains(t, sql, "ts_rank_cd")
	assert.Contains(t, sql, `"timestamp" DESC`)
}

func TestFacetCountQueryIgnoresPagination(t *testing.T) {
	base := buildSearchQuery(&models.SearchQuery{
		CatalogID: catcommon.CatalogSAEON,
		TextQuery: "mooring",
	})
	sql, args := renderSQL(t, buildFacetCountQuery(base))

	// aggregated over the full filtered candidate set, never the page
	assert.Contains(t, sql, "catalog_record_facet")
	assert.Contains(t, sql, "GROUP BY")
	assert.Contains(t, sql, "COUNT(*)")
	assert.Contains(t, sql, "plainto_tsquery")
	assert.NotContains(t, sql, "LIMIT")
	assert.NotContains(t, sql, "OFFSET")
	assert.Contains(t, args, "mooring")
}
