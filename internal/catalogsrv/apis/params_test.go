package apis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
)

func newRequest(target string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("catalogId", "SAEON")
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestParseListParamsDefaults(t *testing.T) {
	q, err := parseListParams(newRequest("/catalogs/SAEON/records"))
	require.NoError(t, err)
	assert.Equal(t, catcommon.CatalogId("SAEON"), q.CatalogID)
	assert.False(t, q.IncludeNonSearchable)
	assert.False(t, q.IncludeRetracted)
	assert.Nil(t, q.UpdatedSince)
	assert.Equal(t, defaultLimit, q.Limit)
	assert.Zero(t, q.Offset)
}

func TestParseListParams(t *testing.T) {
	q, err := parseListParams(newRequest(
		"/catalogs/SAEON/records?include_nonsearchable=true&include_retracted=true" +
			"&updated_since=2025-01-01&limit=10&offset=20"))
	require.NoError(t, err)
	assert.True(t, q.IncludeNonSearchable)
	assert.True(t, q.IncludeRetracted)
	require.NotNil(t, q.UpdatedSince)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), *q.UpdatedSince)
	assert.Equal(t, 10, q.Limit)
	assert.Equal(t, 20, q.Offset)
}

func TestParseListParamsRejectsBadPagination(t *testing.T) {
	_, err := parseListParams(newRequest("/catalogs/SAEON/records?limit=0"))
	assert.Error(t, err)

	_, err = parseListParams(newRequest("/catalogs/SAEON/records?limit=-5"))
	assert.Error(t, err)

	_, err = parseListParams(newRequest("/catalogs/SAEON/records?offset=-1"))
	assert.Error(t, err)

	_, err = parseListParams(newRequest("/catalogs/SAEON/records?limit=abc"))
	assert.Error(t, err)
}

func TestParseListParamsLargeLimit(t *testing.T) {
	// any positive limit is valid, never clamped
	q, err := parseListParams(newRequest("/catalogs/SAEON/records?limit=99999"))
	require.NoError(t, err)
	assert.Equal(t, 99999, q.Limit)
}

func TestParseSearchParams(t *testing.T) {
	q, err := parseSearchParams(newRequest(
		"/catalogs/SAEON/search?text_query=mooring&facet=Collection:Egagasini%20Node" +
			"&facet=Publisher:SAEON&north_bound=-30&south_bound=-36&east_bound=30&west_bound=20" +
			"&exclusive_region=true&start_date=2016-01-01&end_date=2019-01-01"))
	require.NoError(t, err)

	assert.Equal(t, "mooring", q.TextQuery)
	assert.Equal(t, []models.FacetValue{
		{Facet: "Collection", Value: "Egagasini Node"},
		{Facet: "Publisher", Value: "SAEON"},
	}, q.FacetQuery)

	require.NotNil(t, q.Spatial)
	assert.True(t, q.Spatial.ExclusiveRegion)
	require.NotNil(t, q.Spatial.North)
	assert.Equal(t, -30.0, *q.Spatial.North)
	require.NotNil(t, q.Spatial.West)
	assert.Equal(t, 20.0, *q.Spatial.West)

	require.NotNil(t, q.Temporal)
	assert.False(t, q.Temporal.ExclusiveInterval)
	require.NotNil(t, q.Temporal.Start)
	require.NotNil(t, q.Temporal.End)
}

func TestParseSearchParamsSort(t *testing.T) {
	q, err := parseSearchParams(newRequest("/catalogs/SAEON/search"))
	require.NoError(t, err)
	assert.False(t, q.SortByRank)

	q, err = parseSearchParams(newRequest("/catalogs/SAEON/search?sort=timestamp+desc"))
	require.NoError(t, err)
	assert.False(t, q.SortByRank)

	q, err = parseSearchParams(newRequest("/catalogs/SAEON/search?text_query=mooring&sort=rank+desc"))
	require.NoError(t, err)
	assert.True(t, q.SortByRank)

	_, err = parseSearchParams(newRequest("/catalogs/SAEON/search?sort=relevance"))
	assert.Error(t, err)
}

func TestParseSearchParamsEmptyFilters(t *testing.T) {
	q, err := parseSearchParams(newRequest("/catalogs/SAEON/search"))
	require.NoError(t, err)
	assert.Nil(t, q.Spatial)
	assert.Nil(t, q.Temporal)
	assert.Empty(t, q.FacetQuery)
	assert.Empty(t, q.TextQuery)
}

func TestParseSearchParamsPartialBounds(t *testing.T) {
	// bounds are individually optional
	q, err := parseSearchParams(newRequest("/catalogs/SAEON/search?north_bound=-20"))
	require.NoError(t, err)
	require.NotNil(t, q.Spatial)
	require.NotNil(t, q.Spatial.North)
	assert.Nil(t, q.Spatial.South)
	assert.Nil(t, q.Spatial.East)
	assert.Nil(t, q.Spatial.West)
}

func TestParseSearchParamsRejectsOutOfRangeBounds(t *testing.T) {
	_, err := parseSearchParams(newRequest("/catalogs/SAEON/search?north_bound=95"))
	assert.Error(t, err)

	_, err = parseSearchParams(newRequest("/catalogs/SAEON/search?west_bound=-200"))
	assert.Error(t, err)
}

func TestParseSearchParamsRejectsBadFacet(t *testing.T) {
	_, err := parseSearchParams(newRequest("/catalogs/SAEON/search?facet=NoSeparator"))
	assert.Error(t, err)

	_, err = parseSearchParams(newRequest("/catalogs/SAEON/search?facet=:value"))
	assert.Error(t, err)
}

func TestParseSearchParamsRejectsBadDates(t *testing.T) {
	_, err := parseSearchParams(newRequest("/catalogs/SAEON/search?start_date=notadate"))
	assert.Error(t, err)
}
