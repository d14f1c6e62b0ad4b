package publish

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/apperrors"
)

// Evaluator applies one catalog's publish rules to snapshot entries.
// Implementations are pure functions of the entry: the same snapshot state
// always yields the same decision.
type Evaluator interface {
	// Catalog is the catalog the evaluator publishes to.
	Catalog() catcommon.CatalogId
	// External reports whether the catalog is mirrored to an external
	// registry after reconciliation.
	External() bool
	// Evaluate decides whether the entry is published in this catalog and,
	// if so, derives its published form and index terms.
	Evaluate(entry *models.SnapshotEntry) Decision
}

// NewEvaluator returns the evaluator for the given catalog row.
func NewEvaluator(catalog *models.Catalog) (Evaluator, apperrors.Error) {
	switch catalog.ID {
	case catcommon.CatalogSAEON:
		return &saeonEvaluator{}, nil
	case catcommon.CatalogMIMS:
		return &mimsEvaluator{}, nil
	case catcommon.CatalogDataCite:
		return &dataciteEvaluator{catalogUrl: catalog.Url}, nil
	}
	return nil, ErrUnknownCatalog.Msg(string(catalog.ID))
}

// baseEligibility applies the conditions every catalog requires: the record's
// collection must be tagged published, the stored metadata must have passed
// validation, and the record must not be retracted. Reasons accumulate so a
// retraction stub explains everything that is unmet, not just the first check.
func baseEligibility(e *models.SnapshotEntry) (bool, []string) {
	var reasons []string
	if !e.HasTag(catcommon.TagCollectionPublished) {
		reasons = append(reasons, "collection not published")
	}
	if !gjson.GetBytes(e.Record.Validity, "valid").Bool() {
		reasons = append(reasons, "metadata validation failed")
	}
	if e.HasTag(catcommon.TagRecordRetracted) {
		reasons = append(reasons, "record retracted")
	}
	return len(reasons) == 0, reasons
}

// effectiveSearchable is false only when the record or its collection carries
// an explicit not-searchable tag.
func effectiveSearchable(e *models.SnapshotEntry) bool {
	return !e.HasTag(catcommon.TagRecordNotSearchable) &&
		!e.HasTag(catcommon.TagCollectionNotSearchable)
}

// hasInfrastructure reports whether any of the collection's infrastructure
// tags carries the given key. A collection may belong to several
// infrastructures, so all instances are checked.
func hasInfrastructure(e *models.SnapshotEntry, key string) bool {
	for _, t := range e.Tags {
		if t.TagID != catcommon.TagCollectionInfrastructure {
			continue
		}
		if gjson.GetBytes(t.Data, "key").String() == key {
			return true
		}
	}
	return false
}

// dedupeFacets drops repeated facet/value pairs so a record counts once per
// pair in facet aggregation, preserving first-occurrence order.
func dedupeFacets(facets []models.FacetValue) []models.FacetValue {
	seen := make(map[models.FacetValue]bool, len(facets))
	out := facets[:0]
	for _, f := range facets {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// publishedRecord is the catalog-facing published form of a record. It is the
// payload stored on the catalog record row and returned verbatim by the query
// API.
type publishedRecord struct {
	ID             string          `json:"id"`
	DOI            string          `json:"doi,omitempty"`
	SID            string          `json:"sid,omitempty"`
	CollectionKey  string          `json:"collection_key"`
	CollectionName string          `json:"collection_name"`
	Metadata       json.RawMessage `json:"metadata"`
	Tags           []publishedTag  `json:"tags,omitempty"`
	ParentDOI      string          `json:"parent_doi,omitempty"`
	ChildDOIs      []string        `json:"child_dois,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

type publishedTag struct {
	Tag  string          `json:"tag"`
	Data json.RawMessage `json:"data,omitempty"`
}

// publicTags is the set of tag IDs exposed in published payloads.
var publicTags = map[string]bool{
	catcommon.TagCollectionInfrastructure: true,
	catcommon.TagRecordMigrated:           true,
}

func buildPayload(e *models.SnapshotEntry) json.RawMessage {
	pr := publishedRecord{
		ID:             e.Record.ID.String(),
		CollectionKey:  e.CollectionKey,
		CollectionName: e.CollectionName,
		Metadata:       e.Record.Metadata,
		ParentDOI:      e.ParentDOI,
		Timestamp:      e.Record.Timestamp,
	}
	if e.Record.DOI.Valid {
		pr.DOI = e.Record.DOI.String
	}
	if e.Record.SID.Valid {
		pr.SID = e.Record.SID.String
	}
	for _, t := range e.Tags {
		if publicTags[t.TagID] {
			pr.Tags = append(pr.Tags, publishedTag{Tag: t.TagID, Data: t.Data})
		}
	}
	for _, c := range e.Children {
		if c.DOI != "" {
			pr.ChildDOIs = append(pr.ChildDOIs, c.DOI)
		}
	}
	buf, err := json.Marshal(pr)
	if err != nil {
		// payload fields are all marshalable; this cannot happen
		return nil
	}
	return buf
}

// fullTextIndex collects the human-readable metadata fields into the text
// indexed for search: titles, publisher, creator and contributor names with
// affiliations, subjects, and descriptions.
func fullTextIndex(md json.RawMessage) string {
	var parts []string
	add := func(r gjson.Result) {
		if s := strings.TrimSpace(r.String()); s != "" {
			parts = append(parts, s)
		}
	}
	for _, t := range gjson.GetBytes(md, "titles").Array() {
		add(t.Get("title"))
	}
	add(gjson.GetBytes(md, "publisher"))
	for _, path := range []string{"creators", "contributors"} {
		for _, c := range gjson.GetBytes(md, path).Array() {
			add(c.Get("name"))
			for _, a := range c.Get("affiliation").Array() {
				add(a.Get("affiliation"))
			}
		}
	}
	for _, s := range gjson.GetBytes(md, "subjects").Array() {
		add(s.Get("subject"))
	}
	for _, d := range gjson.GetBytes(md, "descriptions").Array() {
		add(d.Get("description"))
	}
	return strings.Join(parts, " ")
}

// spatialEnvelope derives the record's bounding box from its geoLocations.
// Boxes and points are merged into a single envelope; nil when the metadata
// carries no geographic extent.
func spatialEnvelope(md json.RawMessage) *Envelope {
	var env *Envelope
	grow := func(n, s, e, w float64) {
		if env == nil {
			env = &Envelope{North: n, South: s, East: e, West: w}
			return
		}
		if n > env.North {
			env.North = n
		}
		if s < env.South {
			env.South = s
		}
		if e > env.East {
			env.East = e
		}
		if w < env.West {
			env.West = w
		}
	}
	for _, g := range gjson.GetBytes(md, "geoLocations").Array() {
		if box := g.Get("geoLocationBox"); box.Exists() {
			grow(
				box.Get("northBoundLatitude").Float(),
				box.Get("southBoundLatitude").Float(),
				box.Get("eastBoundLongitude").Float(),
				box.Get("westBoundLongitude").Float(),
			)
		} else if pt := g.Get("geoLocationPoint"); pt.Exists() {
			lat := pt.Get("pointLatitude").Float()
			lon := pt.Get("pointLongitude").Float()
			grow(lat, lat, lon, lon)
		}
	}
	return env
}

// temporalInterval derives the record's temporal extent by merging every date
// entry of type Valid: the earliest start and the latest end across all of
// them. A date value is either a single datestamp or a "start/end" range.
func temporalInterval(md json.RawMessage) *Interval {
	var iv *Interval
	for _, d := range gjson.GetBytes(md, "dates").Array() {
		if d.Get("dateType").String() != "Valid" {
			continue
		}
		startStr, endStr, _ := strings.Cut(d.Get("date").String(), "/")
		start, ok := parseDatestamp(startStr)
		if !ok {
			continue
		}
		if iv == nil {
			iv = &Interval{Start: start}
		} else if start.Before(iv.Start) {
			iv.Start = start
		}
		if end, ok := parseDatestamp(endStr); ok {
			if iv.End == nil || end.After(*iv.End) {
				iv.End = &end
			}
		}
	}
	return iv
}

func parseDatestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
