package publish

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/uuid"
)

func testEntry(t *testing.T) *models.SnapshotEntry {
	t.Helper()
	metadata := `{
		"titles": [{"title": "Agulhas Current Mooring Array"}],
		"publisher": "SAEON",
		"creators": [
			{"name": "Ansorge, I.", "affiliation": [{"affiliation": "University of Cape Town"}]}
		],
		"contributors": [{"name": "Morris, T."}],
		"subjects": [
			{"subject": "ocean currents"},
			{"subject": "ASCA", "subjectScheme": "theme"},
			{"subject": "Agulhas Bank", "subjectScheme": "place"},
			{"subject": "ADCP", "subjectScheme": "stratum"}
		],
		"descriptions": [{"description": "Moored current profiler data."}],
		"descriptiveKeywords": [
			{"keywordType": "discipline", "keyword": "Physical Oceanography"}
		],
		"geoLocations": [
			{"geoLocationBox": {
				"northBoundLatitude": -33.0, "southBoundLatitude": -36.5,
				"eastBoundLongitude": 28.0, "westBoundLongitude": 24.5
			}}
		],
		"dates": [{"date": "2016-04-01/2018-06-30", "dateType": "Valid"}]
	}`
	return &models.SnapshotEntry{
		Record: models.Record{
			ID:        uuid.New(),
			DOI:       sql.NullString{String: "10.15493/SAEON.EGAGASINI.10000123", Valid: true},
			Metadata:  json.RawMessage(metadata),
			Validity:  json.RawMessage(`{"valid": true}`),
			Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		CollectionKey:  "egagasini",
		CollectionName: "Egagasini Node",
		Tags: []models.TagInstance{
			{TagID: catcommon.TagCollectionPublished, Type: catcommon.TagTypeCollection},
			{
				TagID: catcommon.TagCollectionInfrastructure,
				Type:  catcommon.TagTypeCollection,
				Data:  json.RawMessage(`{"key": "MIMS"}`),
			},
		},
	}
}

func TestSAEONPublishesEligibleRecord(t *testing.T) {
	ev, err := NewEvaluator(&models.Catalog{ID: catcommon.CatalogSAEON})
	require.NoError(t, err)
	assert.False(t, ev.External())

	e := testEntry(t)
	d := ev.Evaluate(e)

	require.True(t, d.Publish)
	assert.Empty(t, d.Reasons)
	assert.True(t, d.Searchable)

	assert.Contains(t, d.FullText, "Agulhas Current Mooring Array")
	assert.Contains(t, d.FullText, "University of Cape Town")
	assert.Contains(t, d.FullText, "ocean currents")
	assert.Contains(t, d.FullText, "Moored current profiler data.")

	require.NotNil(t, d.Spatial)
	assert.Equal(t, -33.0, d.Spatial.North)
	assert.Equal(t, -36.5, d.Spatial.South)
	assert.Equal(t, 28.0, d.Spatial.East)
	assert.Equal(t, 24.5, d.Spatial.West)

	require.NotNil(t, d.Temporal)
	assert.Equal(t, time.Date(2016, 4, 1, 0, 0, 0, 0, time.UTC), d.Temporal.Start)
	require.NotNil(t, d.Temporal.End)
	assert.Equal(t, time.Date(2018, 6, 30, 0, 0, 0, 0, time.UTC), *d.Temporal.End)

	assert.Contains(t, d.Facets, models.FacetValue{Facet: "Collection", Value: "Egagasini Node"})
	assert.Contains(t, d.Facets, models.FacetValue{Facet: "Publisher", Value: "SAEON"})
	assert.Contains(t, d.Facets, models.FacetValue{Facet: "Discipline", Value: "Physical Oceanography"})

	require.NotNil(t, d.Payload)
	assert.Equal(t, e.Record.ID.String(), gjson.GetBytes(d.Payload, "id").String())
	assert.Equal(t, "10.15493/SAEON.EGAGASINI.10000123", gjson.GetBytes(d.Payload, "doi").String())
	assert.Equal(t, "egagasini", gjson.GetBytes(d.Payload, "collection_key").String())
}

func TestEligibilityReasonsAccumulate(t *testing.T) {
	ev, err := NewEvaluator(&models.Catalog{ID: catcommon.CatalogSAEON})
	require.NoError(t, err)

	e := testEntry(t)
	e.Tags = append(e.Tags[:0:0], models.TagInstance{
		TagID: catcommon.TagRecordRetracted,
		Type:  catcommon.TagTypeRecord,
	})
	e.Record.Validity = json.RawMessage(`{"valid": false}`)

	d := ev.Evaluate(e)
	require.False(t, d.Publish)
	assert.Contains(t, d.Reasons, "collection not published")
	assert.Contains(t, d.Reasons, "metadata validation failed")
	assert.Contains(t, d.Reasons, "record retracted")
	assert.Nil(t, d.Payload)
	assert.Empty(t, d.FullText)
	assert.Nil(t, d.Spatial)
	assert.Nil(t, d.Temporal)
}

func TestNotSearchableTags(t *testing.T) {
	ev, err := NewEvaluator(&models.Catalog{ID: catcommon.CatalogSAEON})
	require.NoError(t, err)

	e := testEntry(t)
	e.Tags = append(e.Tags, models.TagInstance{
		TagID: catcommon.TagCollectionNotSearchable,
		Type:  catcommon.TagTypeCollection,
	})
	d := ev.Evaluate(e)
	require.True(t, d.Publish)
	assert.False(t, d.Searchable)
}

func TestMIMSRequiresInfrastructure(t *testing.T) {
	ev, err := NewEvaluator(&models.Catalog{ID: catcommon.CatalogMIMS})
	require.NoError(t, err)

	e := testEntry(t)
	d := ev.Evaluate(e)
	require.True(t, d.Publish)
	assert.Contains(t, d.Facets, models.FacetValue{Facet: "Project", Value: "ASCA"})
	assert.Contains(t, d.Facets, models.FacetValue{Facet: "Location", Value: "Agulhas Bank"})
	assert.Contains(t, d.Facets, models.FacetValue{Facet: "Instrument", Value: "ADCP"})
	assert.NotContains(t, d.Facets, models.FacetValue{Facet: "Collection", Value: "Egagasini Node"})

	// same record in a collection outside MIMS
	e.Tags = []models.TagInstance{
		{TagID: catcommon.TagCollectionPublished, Type: catcommon.TagTypeCollection},
		{
			TagID: catcommon.TagCollectionInfrastructure,
			Type:  catcommon.TagTypeCollection,
			Data:  json.RawMessage(`{"key": "SAPRI"}`),
		},
	}
	d = ev.Evaluate(e)
	require.False(t, d.Publish)
	assert.Contains(t, d.Reasons, "collection not part of MIMS")
}

func TestDataCiteRequiresDOI(t *testing.T) {
	ev, err := NewEvaluator(&models.Catalog{
		ID:  catcommon.CatalogDataCite,
		Url: "https://catalogue.saeon.ac.za/records/",
	})
	require.NoError(t, err)
	assert.True(t, ev.External())

	e := testEntry(t)
	d := ev.Evaluate(e)
	require.True(t, d.Publish)
	assert.Equal(t, "10.15493/SAEON.EGAGASINI.10000123", gjson.GetBytes(d.Payload, "doi").String())
	assert.Equal(t,
		"https://catalogue.saeon.ac.za/records/10.15493/SAEON.EGAGASINI.10000123",
		gjson.GetBytes(d.Payload, "url").String())
	assert.Empty(t, d.FullText)
	assert.Nil(t, d.Spatial)
	assert.Nil(t, d.Facets)

	e.Record.DOI = sql.NullString{}
	d = ev.Evaluate(e)
	require.False(t, d.Publish)
	assert.Contains(t, d.Reasons, "record has no DOI")
}

func TestEvaluationIsDeterministic(t *testing.T) {
	ev, err := NewEvaluator(&models.Catalog{ID: catcommon.CatalogSAEON})
	require.NoError(t, err)

	e := testEntry(t)
	first := ev.Evaluate(e)
	second := ev.Evaluate(e)
	assert.Equal(t, first, second)
}

func TestUnknownCatalog(t *testing.T) {
	_, err := NewEvaluator(&models.Catalog{ID: "Nonexistent"})
	assert.Error(t, err)
}

func TestSpatialEnvelopeMergesLocations(t *testing.T) {
	md := json.RawMessage(`{
		"geoLocations": [
			{"geoLocationPoint": {"pointLatitude": -30.0, "pointLongitude": 30.5}},
			{"geoLocationBox": {
				"northBoundLatitude": -32.0, "southBoundLatitude": -35.0,
				"eastBoundLongitude": 27.0, "westBoundLongitude": 20.0
			}}
		]
	}`)
	env := spatialEnvelope(md)
	require.NotNil(t, env)
	assert.Equal(t, -30.0, env.North)
	assert.Equal(t, -35.0, env.South)
	assert.Equal(t, 30.5, env.East)
	assert.Equal(t, 20.0, env.West)

	assert.Nil(t, spatialEnvelope(json.RawMessage(`{"titles": []}`)))
}

func TestTemporalIntervalParsing(t *testing.T) {
	iv := temporalInterval(json.RawMessage(`{
		"dates": [
			{"date": "2020-01-15", "dateType": "Issued"},
			{"date": "2019-03", "dateType": "Valid"}
		]
	}`))
	require.NotNil(t, iv)
	assert.Equal(t, time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC), iv.Start)
	assert.Nil(t, iv.End)

	assert.Nil(t, temporalInterval(json.RawMessage(`{"dates": [{"date": "not a date", "dateType": "Valid"}]}`)))
	assert.Nil(t, temporalInterval(json.RawMessage(`{}`)))
}

func TestTemporalIntervalMergesValidDates(t *testing.T) {
	// several Valid entries index as one extent: earliest start, latest end
	iv := temporalInterval(json.RawMessage(`{
		"dates": [
			{"date": "2018-06/2018-09", "dateType": "Valid"},
			{"date": "2016-01-01/2017-01-01", "dateType": "Valid"},
			{"date": "2020-02-29", "dateType": "Valid"}
		]
	}`))
	require.NotNil(t, iv)
	assert.Equal(t, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC), iv.Start)
	require.NotNil(t, iv.End)
	assert.Equal(t, time.Date(2018, 9, 1, 0, 0, 0, 0, time.UTC), *iv.End)
}

func TestFacetsAreDeduplicated(t *testing.T) {
	e := testEntry(t)
	e.Record.Metadata = json.RawMessage(`{
		"publisher": "SAEON",
		"descriptiveKeywords": [
			{"keywordType": "discipline", "keyword": "Physical Oceanography"},
			{"keywordType": "discipline", "keyword": "Physical Oceanography"}
		]
	}`)
	facets := saeonFacets(e)

	count := 0
	for _, f := range facets {
		if f == (models.FacetValue{Facet: "Discipline", Value: "Physical Oceanography"}) {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
