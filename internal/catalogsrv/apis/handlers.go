// Package apis implements the public catalog query API: catalog listings and
// the list, search, and single-record endpoints over reconciled state.
package apis

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgtype"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db"
	"github.com/datapub/datapub/internal/common/httpx"
)

func listCatalogs(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	catalogs, err := db.DB(ctx).ListCatalogs(ctx)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   catalogs,
	}, nil
}

// catalogRsp is a catalog row with its published record count.
type catalogRsp struct {
	ID          catcommon.CatalogId `json:"id"`
	Url         string              `json:"url"`
	Data        json.RawMessage     `json:"data,omitempty"`
	RecordCount int64               `json:"record_count"`
}

func getCatalog(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	catalog, err := db.DB(ctx).GetCatalog(ctx, catalogIdParam(r))
	if err != nil {
		return nil, err
	}
	rsp := catalogRsp{ID: catalog.ID, Url: catalog.Url}
	if catalog.Data.Status == pgtype.Present {
		rsp.Data = catalog.Data.Bytes
	}
	summaries, err := db.DB(ctx).ListCatalogs(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		if s.ID == catalog.ID {
			rsp.RecordCount = s.RecordCount
		}
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}

// requireCatalog resolves the catalog path parameter against the configured
// catalogs so a typo answers with an error rather than an empty result set.
func requireCatalog(r *http.Request) (catcommon.CatalogId, error) {
	ctx := r.Context()
	catalog, err := db.DB(ctx).GetCatalog(ctx, catalogIdParam(r))
	if err != nil {
		return "", err
	}
	return catalog.ID, nil
}

func listRecords(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if _, err := requireCatalog(r); err != nil {
		return nil, err
	}
	q, err := parseListParams(r)
	if err != nil {
		return nil, err
	}
	page, aerr := db.DB(ctx).ListRecords(ctx, q)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   page,
	}, nil
}

func searchRecords(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	if _, err := requireCatalog(r); err != nil {
		return nil, err
	}
	q, err := parseSearchParams(r)
	if err != nil {
		return nil, err
	}
	result, aerr := db.DB(ctx).SearchRecords(ctx, q)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   result,
	}, nil
}

// getRecord answers a single published record addressed by UUID or DOI. The
// identifier is taken from the wildcard tail of the path since DOIs contain
// slashes.
func getRecord(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	catalogID, err := requireCatalog(r)
	if err != nil {
		return nil, err
	}
	idOrDOI := chi.URLParam(r, "*")
	if idOrDOI == "" {
		return nil, httpx.ErrInvalidRequest("missing record identifier")
	}
	result, aerr := db.DB(ctx).GetPublishedRecord(ctx, catalogID, idOrDOI)
	if aerr != nil {
		return nil, aerr
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   result,
	}, nil
}
