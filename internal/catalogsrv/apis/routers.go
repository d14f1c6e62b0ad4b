package apis

import (
	"github.com/go-chi/chi/v5"

	"github.com/datapub/datapub/internal/common/httpx"
)

// Router mounts the catalog query API on the given router.
func Router(r chi.Router) {
	r.Route("/catalogs", func(r chi.Router) {
		r.Get("/", httpx.WrapHttpRsp(listCatalogs))
		r.Route("/{catalogId}", func(r chi.Router) {
			r.Get("/", httpx.WrapHttpRsp(getCatalog))
			r.Get("/records", httpx.WrapHttpRsp(listRecords))
			r.Get("/search", httpx.WrapHttpRsp(searchRecords))
			// record identifiers may be DOIs, which contain slashes
			r.Get("/records/*", httpx.WrapHttpRsp(getRecord))
		})
	})
}
