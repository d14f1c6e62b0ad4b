package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/dberror"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/uuid"
)

func seedCatalog(t *testing.T, ctx context.Context, id catcommon.CatalogId) {
	t.Helper()
	err := DB(ctx).UpsertCatalog(ctx, &models.Catalog{
		ID:   id,
		Url:  "https://catalogue.example.org",
		Data: pgtype.JSONB{Status: pgtype.Null},
	})
	require.NoError(t, err)
}

func TestUpsertCatalogRecordLifecycle(t *testing.T) {
	ctx := newDb(t)
	defer DB(ctx).Close(ctx)

	seedCatalog(t, ctx, catcommon.CatalogSAEON)
	recordID := uuid.New()

	cr := &models.CatalogRecord{
		CatalogID:       catcommon.CatalogSAEON,
		RecordID:        recordID,
		Published:       true,
		PublishedRecord: []byte(`{"id":"` + recordID.String() + `"}`),
		FullText:        "agulhas mooring array",
	}
	facets := []models.FacetValue{
		{Facet: "Collection", Value: "Egagasini Node"},
		{Facet: "Publisher", Value: "SAEON"},
	}
	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, cr, "10.15493/TEST.1", facets))
	assert.False(t, cr.Timestamp.IsZero())

	got, err := DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogSAEON, recordID)
	require.NoError(t, err)
	assert.True(t, got.Published)
	assert.True(t, got.IsSearchable())
	assert.False(t, got.Synced.Valid && got.Synced.Bool)

	gotFacets, err := DB(ctx).ListFacets(ctx, catcommon.CatalogSAEON, recordID)
	require.NoError(t, err)
	assert.Equal(t, facets, gotFacets)

	// republish with different facets: old rows must not survive
	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, cr, "10.15493/TEST.1", facets[:1]))
	gotFacets, err = DB(ctx).ListFacets(ctx, catcommon.CatalogSAEON, recordID)
	require.NoError(t, err)
	assert.Equal(t, facets[:1], gotFacets)

	// retraction: row stays as a stub, marker and facets go
	stub := &models.CatalogRecord{
		CatalogID: catcommon.CatalogSAEON,
		RecordID:  recordID,
		Published: false,
		Reason:    "record retracted",
	}
	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, stub, "10.15493/TEST.1", nil))

	got, err = DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogSAEON, recordID)
	require.NoError(t, err)
	assert.False(t, got.Published)
	assert.Equal(t, "record retracted", got.Reason)
	assert.Nil(t, got.PublishedRecord)

	gotFacets, err = DB(ctx).ListFacets(ctx, catcommon.CatalogSAEON, recordID)
	require.NoError(t, err)
	assert.Empty(t, gotFacets)

	_, err = DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogSAEON, uuid.New())
	assert.ErrorIs(t, err, dberror.ErrNotFound)
}

func TestUpsertCatalogRecordIdempotence(t *testing.T) {
	ctx := newDb(t)
	defer DB(ctx).Close(ctx)

	seedCatalog(t, ctx, catcommon.CatalogDataCite)
	recordID := uuid.New()

	reconciled := func() *models.CatalogRecord {
		return &models.CatalogRecord{
			CatalogID:       catcommon.CatalogDataCite,
			RecordID:        recordID,
			Published:       true,
			PublishedRecord: []byte(`{"doi":"10.15493/TEST.3"}`),
		}
	}
	facets := []models.FacetValue{{Facet: "Collection", Value: "Egagasini Node"}}

	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, reconciled(), "10.15493/TEST.3", facets))
	require.NoError(t, DB(ctx).SetSyncResult(ctx, catcommon.CatalogDataCite, recordID, ""))

	first, err := DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogDataCite, recordID)
	require.NoError(t, err)

	// replaying the same reconciliation changes nothing but the timestamp,
	// and in particular does not requeue an already-mirrored record
	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, reconciled(), "10.15493/TEST.3", facets))
	second, err := DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogDataCite, recordID)
	require.NoError(t, err)

	assert.False(t, second.Timestamp.Before(first.Timestamp))
	assert.True(t, second.Synced.Valid && second.Synced.Bool)
	first.Timestamp, second.Timestamp = time.Time{}, time.Time{}
	assert.Equal(t, first, second)

	gotFacets, err := DB(ctx).ListFacets(ctx, catcommon.CatalogDataCite, recordID)
	require.NoError(t, err)
	assert.Equal(t, facets, gotFacets)

	// a payload change requeues the record for mirroring
	changed := reconciled()
	changed.PublishedRecord = []byte(`{"doi":"10.15493/TEST.3","url":"https://doi.example.org"}`)
	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, changed, "10.15493/TEST.3", facets))
	third, err := DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogDataCite, recordID)
	require.NoError(t, err)
	assert.False(t, third.Synced.Valid && third.Synced.Bool)
}

func TestListRecordsRetractionVisibility(t *testing.T) {
	ctx := newDb(t)
	defer DB(ctx).Close(ctx)

	seedCatalog(t, ctx, catcommon.CatalogMIMS)
	published := uuid.New()
	retracted := uuid.New()

	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, &models.CatalogRecord{
		CatalogID:       catcommon.CatalogMIMS,
		RecordID:        published,
		Published:       true,
		PublishedRecord: []byte(`{}`),
	}, "", nil))
	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, &models.CatalogRecord{
		CatalogID: catcommon.CatalogMIMS,
		RecordID:  retracted,
		Published: false,
		Reason:    "collection not published",
	}, "", nil))

	page, err := DB(ctx).ListRecords(ctx, &models.ListQuery{
		CatalogID: catcommon.CatalogMIMS,
		Limit:     100,
	})
	require.NoError(t, err)
	ids := map[string]bool{}
	for _, r := range page.Results {
		ids[r.RecordID] = true
	}
	assert.True(t, ids[published.String()])
	assert.False(t, ids[retracted.String()])

	page, err = DB(ctx).ListRecords(ctx, &models.ListQuery{
		CatalogID:        catcommon.CatalogMIMS,
		IncludeRetracted: true,
		Limit:            100,
	})
	require.NoError(t, err)
	ids = map[string]bool{}
	stubPayload := map[string]bool{}
	for _, r := range page.Results {
		ids[r.RecordID] = true
		if r.RecordID == retracted.String() {
			stubPayload[r.RecordID] = r.Record != nil
		}
	}
	assert.True(t, ids[published.String()])
	assert.True(t, ids[retracted.String()])
	assert.False(t, stubPayload[retracted.String()], "retraction stub must not carry a payload")
}

func TestSetSyncResult(t *testing.T) {
	ctx := newDb(t)
	defer DB(ctx).Close(ctx)

	seedCatalog(t, ctx, catcommon.CatalogDataCite)
	recordID := uuid.New()

	require.NoError(t, DB(ctx).UpsertCatalogRecord(ctx, &models.CatalogRecord{
		CatalogID:       catcommon.CatalogDataCite,
		RecordID:        recordID,
		Published:       true,
		PublishedRecord: []byte(`{"doi":"10.15493/TEST.2"}`),
	}, "10.15493/TEST.2", nil))

	pending, err := DB(ctx).ListPendingSync(ctx, catcommon.CatalogDataCite)
	require.NoError(t, err)
	found := false
	for _, c := range pending {
		if c.RecordID == recordID {
			found = true
			assert.True(t, c.Published)
		}
	}
	assert.True(t, found)

	// a failure stays pending with the error and attempt count recorded
	require.NoError(t, DB(ctx).SetSyncResult(ctx, catcommon.CatalogDataCite, recordID, "registry returned 502"))
	cr, err := DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogDataCite, recordID)
	require.NoError(t, err)
	assert.False(t, cr.Synced.Valid && cr.Synced.Bool)
	assert.Equal(t, "registry returned 502", cr.Error.String)
	assert.Equal(t, 1, cr.ErrorCount)

	// success clears the bookkeeping
	require.NoError(t, DB(ctx).SetSyncResult(ctx, catcommon.CatalogDataCite, recordID, ""))
	cr, err = DB(ctx).GetCatalogRecord(ctx, catcommon.CatalogDataCite, recordID)
	require.NoError(t, err)
	assert.True(t, cr.Synced.Valid && cr.Synced.Bool)
	assert.False(t, cr.Error.Valid)
	assert.Zero(t, cr.ErrorCount)

	pending, err = DB(ctx).ListPendingSync(ctx, catcommon.CatalogDataCite)
	require.NoError(t, err)
	for _, c := range pending {
		assert.NotEqual(t, recordID, c.RecordID)
	}
}
