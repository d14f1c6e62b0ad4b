package publish

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
)

// saeonEvaluator publishes every eligible record to the primary indexed
// catalog.
type saeonEvaluator struct{}

func (ev *saeonEvaluator) Catalog() catcommon.CatalogId {
	return catcommon.CatalogSAEON
}

func (ev *saeonEvaluator) External() bool {
	return false
}

func (ev *saeonEvaluator) Evaluate(e *models.SnapshotEntry) Decision {
	ok, reasons := baseEligibility(e)
	if !ok {
		return Decision{Publish: false, Reasons: reasons}
	}
	md := e.Record.Metadata
	return Decision{
		Publish:    true,
		Searchable: effectiveSearchable(e),
		Payload:    buildPayload(e),
		FullText:   fullTextIndex(md),
		Spatial:    spatialEnvelope(md),
		Temporal:   temporalInterval(md),
		Facets:     saeonFacets(e),
	}
}

func saeonFacets(e *models.SnapshotEntry) []models.FacetValue {
	facets := []models.FacetValue{
		{Facet: "Collection", Value: e.CollectionName},
	}
	if p := gjson.GetBytes(e.Record.Metadata, "publisher").String(); p != "" {
		facets = append(facets, models.FacetValue{Facet: "Publisher", Value: p})
	}
	// descriptive keywords facet by their keyword type
	for _, k := range gjson.GetBytes(e.Record.Metadata, "descriptiveKeywords").Array() {
		typ := strings.TrimSpace(k.Get("keywordType").String())
		word := strings.TrimSpace(k.Get("keyword").String())
		if typ == "" || word == "" {
			continue
		}
		facets = append(facets, models.FacetValue{Facet: facetName(typ), Value: word})
	}
	return dedupeFacets(facets)
}

// facetName capitalizes a keyword type into a facet name.
func facetName(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
