package models

import (
	"encoding/json"
	"time"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
)

// ListQuery holds the parameters of a list_records call.
type ListQuery struct {
	CatalogID            catcommon.CatalogId
	IncludeNonSearchable bool
	IncludeRetracted     bool
	UpdatedSince         *time.Time
	Limit                int
	Offset               int
}

// SpatialFilter is a bounding-box predicate. Bounds are individually optional.
// The default test is intersection; ExclusiveRegion flips it to containment.
type SpatialFilter struct {
	North           *float64
	South           *float64
	East            *float64
	West            *float64
	ExclusiveRegion bool
}

// Empty reports whether no bound is set.
func (f *SpatialFilter) Empty() bool {
	return f == nil || (f.North == nil && f.South == nil && f.East == nil && f.West == nil)
}

// TemporalFilter is an interval predicate. The default test is overlap, with a
// record lacking an end treated as instantaneous at its start;
// ExclusiveInterval flips it to containment.
type TemporalFilter struct {
	Start             *time.Time
	End               *time.Time
	ExclusiveInterval bool
}

// Empty reports whether no bound is set.
func (f *TemporalFilter) Empty() bool {
	return f == nil || (f.Start == nil && f.End == nil)
}

// SearchQuery holds the parameters of a search_records call. SortByRank
// orders results by full-text relevance instead of timestamp; it has no
// effect without a text query.
type SearchQuery struct {
	CatalogID  catcommon.CatalogId
	TextQuery  string
	FacetQuery []FacetValue
	Spatial    *SpatialFilter
	Temporal   *TemporalFilter
	SortByRank bool
	Limit      int
	Offset     int
}

// RecordResult is one catalog record as returned by list and search queries.
// Record carries the published payload and is omitted for retraction stubs.
type RecordResult struct {
	RecordID   string          `json:"record_id"`
	Published  bool            `json:"published"`
	Searchable bool            `json:"searchable"`
	Timestamp  time.Time       `json:"timestamp"`
	Record     json.RawMessage `json:"record,omitempty"`
}

// RecordPage is the result of a list_records call. Count is computed over the
// unpaginated predicate.
type RecordPage struct {
	Count   int64          `json:"count"`
	Results []RecordResult `json:"results"`
}

// FacetCount is an aggregate count for one facet/value pair over the entire
// filtered candidate set, independent of pagination.
type FacetCount struct {
	Facet string `json:"facet"`
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// SearchResult is the result of a search_records call.
type SearchResult struct {
	Count   int64          `json:"count"`
	Results []RecordResult `json:"results"`
	Facets  []FacetCount   `json:"facets"`
}
