package apis

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/httpx"
)

var validate = validator.New()

const defaultLimit = 50

// pageParams are the pagination parameters common to list and search.
// Out-of-range values are rejected, never clamped.
type pageParams struct {
	Limit  int `validate:"gt=0"`
	Offset int `validate:"gte=0"`
}

// boundsParams are the spatial bounds, validated against geographic ranges.
type boundsParams struct {
	North *float64 `validate:"omitempty,gte=-90,lte=90"`
	South *float64 `validate:"omitempty,gte=-90,lte=90"`
	East  *float64 `validate:"omitempty,gte=-180,lte=180"`
	West  *float64 `validate:"omitempty,gte=-180,lte=180"`
}

func catalogIdParam(r *http.Request) catcommon.CatalogId {
	return catcommon.CatalogId(chi.URLParam(r, "catalogId"))
}

func parseListParams(r *http.Request) (*models.ListQuery, error) {
	q := r.URL.Query()
	lq := &models.ListQuery{CatalogID: catalogIdParam(r)}

	var err error
	if lq.IncludeNonSearchable, err = boolParam(q.Get("include_nonsearchable")); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid include_nonsearchable")
	}
	if lq.IncludeRetracted, err = boolParam(q.Get("include_retracted")); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid include_retracted")
	}
	if lq.UpdatedSince, err = timeParam(q.Get("updated_since")); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid updated_since")
	}
	if lq.Limit, lq.Offset, err = pagination(q.Get("limit"), q.Get("offset")); err != nil {
		return nil, err
	}
	return lq, nil
}

func parseSearchParams(r *http.Request) (*models.SearchQuery, error) {
	q := r.URL.Query()
	sq := &models.SearchQuery{
		CatalogID: catalogIdParam(r),
		TextQuery: strings.TrimSpace(q.Get("text_query")),
	}

	switch q.Get("sort") {
	case "", "timestamp desc":
	case "rank desc":
		sq.SortByRank = true
	default:
		return nil, httpx.ErrInvalidRequest("invalid sort, expected 'timestamp desc' or 'rank desc'")
	}

	for _, fv := range q["facet"] {
		facet, value, found := strings.Cut(fv, ":")
		if !found || strings.TrimSpace(facet) == "" || strings.TrimSpace(value) == "" {
			return nil, httpx.ErrInvalidRequest("invalid facet, expected facet:value")
		}
		sq.FacetQuery = append(sq.FacetQuery, models.FacetValue{
			Facet: strings.TrimSpace(facet),
			Value: strings.TrimSpace(value),
		})
	}

	bounds := boundsParams{}
	var err error
	if bounds.North, err = floatParam(q.Get("north_bound")); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid north_bound")
	}
	if bounds.South, err = floatParam(q.Get("south_bound")); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid south_bound")
	}
	if bounds.East, err = floatParam(q.Get("east_bound")); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid east_bound")
	}
	if bounds.West, err = floatParam(q.Get("west_bound")); err != nil {
		return nil, httpx.ErrInvalidRequest("invalid west_bound")
	}
	if err := validate.Struct(bounds); err != nil {
		return nil, httpx.ErrInvalidRequest("spatial bounds out of range")
	}
	exclusiveRegion, err := boolParam(q.Get("exclusive_region"))
	if err != nil {
		return nil, httpx.ErrInvalidRequest("invalid exclusive_region")
	}
	spatial := &models.SpatialFilter{
		North:           bounds.North,
		South:           bounds.South,
		East:            bounds.East,
		West:            bounds.West,
		ExclusiveRegion: exclusiveRegion,
	}
	if !spatial.Empty() {
		sq.Spatial = spatial
	}

	start, err := timeParam(q.Get("start_date"))
	if err != nil {
		return nil, httpx.ErrInvalidRequest("invalid start_date")
	}
	end, err := timeParam(q.Get("end_date"))
	if err != nil {
		return nil, httpx.ErrInvalidRequest("invalid end_date")
	}
	exclusiveInterval, err := boolParam(q.Get("exclusive_interval"))
	if err != nil {
		return nil, httpx.ErrInvalidRequest("invalid exclusive_interval")
	}
	temporal := &models.TemporalFilter{
		Start:             start,
		End:               end,
		ExclusiveInterval: exclusiveInterval,
	}
	if !temporal.Empty() {
		sq.Temporal = temporal
	}

	if sq.Limit, sq.Offset, err = pagination(q.Get("limit"), q.Get("offset")); err != nil {
		return nil, err
	}
	return sq, nil
}

func pagination(limitStr, offsetStr string) (int, int, error) {
	p := pageParams{Limit: defaultLimit, Offset: 0}
	var err error
	if limitStr != "" {
		if p.Limit, err = strconv.Atoi(limitStr); err != nil {
			return 0, 0, httpx.ErrInvalidRequest("invalid limit")
		}
	}
	if offsetStr != "" {
		if p.Offset, err = strconv.Atoi(offsetStr); err != nil {
			return 0, 0, httpx.ErrInvalidRequest("invalid offset")
		}
	}
	if err := validate.Struct(p); err != nil {
		return 0, 0, httpx.ErrInvalidRequest("limit must be positive and offset non-negative")
	}
	return p.Limit, p.Offset, nil
}

func boolParam(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func floatParam(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// timeParam accepts RFC 3339 timestamps and plain dates.
func timeParam(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, httpx.ErrInvalidRequest("invalid timestamp")
}
