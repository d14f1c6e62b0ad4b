package config

import (
	"github.com/datapub/datapub/internal/catalogsrv/config"
)

// CatalogDsn returns the DSN for the catalog database
func CatalogDsn() string {
	return config.CatalogDSN()
}
