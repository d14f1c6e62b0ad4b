// Package dberror defines the database error taxonomy for the catalog service.
package dberror

import (
	"net/http"

	"github.com/datapub/datapub/internal/common/apperrors"
)

var (
	ErrDatabase       apperrors.Error = apperrors.New("db error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadyExists  apperrors.Error = ErrDatabase.New("already exists").SetStatusCode(http.StatusConflict)
	ErrNotFound       apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidInput   apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest)
	ErrInvalidCatalog apperrors.Error = ErrDatabase.New("invalid catalog").SetStatusCode(http.StatusBadRequest)

	// ErrConsistency indicates the snapshot read transaction could not be
	// established at the required isolation level. Fatal for the pipeline run.
	ErrConsistency apperrors.Error = ErrDatabase.New("snapshot consistency could not be guaranteed")
)
