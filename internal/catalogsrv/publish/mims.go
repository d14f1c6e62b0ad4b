package publish

import (
	"strings"

	"github.com/tidwall/gjson"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
)

// mimsEvaluator publishes the marine-infrastructure subset: records whose
// collection carries the MIMS infrastructure tag, faceted by the marine
// subject vocabulary instead of the generic collection facets.
type mimsEvaluator struct{}

func (ev *mimsEvaluator) Catalog() catcommon.CatalogId {
	return catcommon.CatalogMIMS
}

func (ev *mimsEvaluator) External() bool {
	return false
}

func (ev *mimsEvaluator) Evaluate(e *models.SnapshotEntry) Decision {
	ok, reasons := baseEligibility(e)
	if !hasInfrastructure(e, catcommon.InfrastructureMIMS) {
		ok = false
		reasons = append(reasons, "collection not part of MIMS")
	}
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
		Facets:     mimsFacets(md),
	}
}

// mimsFacetSchemes maps subject schemes to MIMS facet names.
var mimsFacetSchemes = map[string]string{
	"theme":   "Project",
	"place":   "Location",
	"stratum": "Instrument",
}

func mimsFacets(md []byte) []models.FacetValue {
	var facets []models.FacetValue
	for _, s := range gjson.GetBytes(md, "subjects").Array() {
		scheme := strings.ToLower(s.Get("subjectScheme").String())
		facet, ok := mimsFacetSchemes[scheme]
		if !ok {
			continue
		}
		if v := strings.TrimSpace(s.Get("subject").String()); v != "" {
			facets = append(facets, models.FacetValue{Facet: facet, Value: v})
		}
	}
	return dedupeFacets(facets)
}
