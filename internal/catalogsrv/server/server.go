// Package server assembles the catalog query API server: router, middleware
// chain, and the health and version endpoints.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/apis"
	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/config"
	"github.com/datapub/datapub/internal/catalogsrv/db"
	"github.com/datapub/datapub/internal/common/httpx"
	"github.com/datapub/datapub/internal/common/middleware"
)

// CatalogServer holds the assembled router.
type CatalogServer struct {
	Router *chi.Mux
}

// CreateNewServer returns a server with an empty router.
func CreateNewServer() *CatalogServer {
	return &CatalogServer{Router: chi.NewRouter()}
}

// MountHandlers installs the middleware chain and mounts all routes.
func (s *CatalogServer) MountHandlers() {
	r := s.Router

	r.Use(middleware.RequestLogger)
	r.Use(middleware.PanicHandler)
	if config.Config().HandleCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.SetTimeout(config.Config().GetRequestTimeoutOrDefault()))

	r.Get("/version", httpx.WrapHttpRsp(versionHandler))
	r.Get("/ready", httpx.WrapHttpRsp(readyHandler))

	r.Group(func(r chi.Router) {
		r.Use(db.LoadDBMiddleware)
		apis.Router(r)
	})
}

func versionHandler(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: map[string]string{
			"server_version": catcommon.ServerVersion,
			"api_version":    catcommon.ApiVersion,
		},
	}, nil
}

func readyHandler(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, httpx.ErrApplicationError("database unavailable")
	}
	conn.Close(ctx)
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   map[string]string{"status": "ready"},
	}, nil
}

// Serve starts the HTTP server on the configured address. Blocks until the
// listener fails.
func Serve() error {
	db.Init()

	s := CreateNewServer()
	s.MountHandlers()

	addr := config.Config().ServerHostName + ":" + config.Config().ServerPort
	log.Info().Str("addr", addr).Msg("starting catalog server")
	return http.ListenAndServe(addr, s.Router)
}
