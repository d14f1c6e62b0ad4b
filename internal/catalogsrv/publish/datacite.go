package publish

import (
	"encoding/json"
	"strings"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
)

// dataciteEvaluator publishes DOI-bearing records to the external DOI
// registry. The catalog is not locally indexed, so no full-text, spatial,
// temporal or facet terms are derived; the payload carries exactly what the
// registry needs.
type dataciteEvaluator struct {
	catalogUrl string
}

func (ev *dataciteEvaluator) Catalog() catcommon.CatalogId {
	return catcommon.CatalogDataCite
}

func (ev *dataciteEvaluator) External() bool {
	return true
}

// dataciteRecord is the published form registered with the DOI registry: the
// DOI, the landing page URL on this catalog, and the record metadata.
type dataciteRecord struct {
	DOI      string          `json:"doi"`
	URL      string          `json:"url"`
	Metadata json.RawMessage `json:"metadata"`
}

func (ev *dataciteEvaluator) Evaluate(e *models.SnapshotEntry) Decision {
	ok, reasons := baseEligibility(e)
	if !e.Record.DOI.Valid || e.Record.DOI.String == "" {
		ok = false
		reasons = append(reasons, "record has no DOI")
	}
	if !ok {
		return Decision{Publish: false, Reasons: reasons}
	}
	doi := e.Record.DOI.String
	payload, err := json.Marshal(dataciteRecord{
		DOI:      doi,
		URL:      strings.TrimRight(ev.catalogUrl, "/") + "/" + doi,
		Metadata: e.Record.Metadata,
	})
	if err != nil {
		return Decision{Publish: false, Reasons: []string{"payload could not be built"}}
	}
	return Decision{
		Publish:    true,
		Searchable: effectiveSearchable(e),
		Payload:    payload,
	}
}
