package publish

import (
	"encoding/json"
	"time"

	"github.com/datapub/datapub/internal/catalogsrv/db/models"
)

// Envelope is a geographic bounding box in decimal degrees.
type Envelope struct {
	North float64
	South float64
	East  float64
	West  float64
}

// Interval is a temporal extent. A nil End means the extent is instantaneous
// at Start.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Decision is the outcome of evaluating one snapshot entry against a
// catalog's publish rules. When Publish is false, Reasons names the unmet
// conditions and every derived field is zero.
type Decision struct {
	Publish    bool
	Reasons    []string
	Searchable bool
	Payload    json.RawMessage
	FullText   string
	Spatial    *Envelope
	Temporal   *Interval
	Facets     []models.FacetValue
}
