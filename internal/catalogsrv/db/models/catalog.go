package models

import (
	"database/sql"

	"github.com/jackc/pgtype"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
)

/*
   Column    |           Type           | Collation | Nullable | Default
-------------+--------------------------+-----------+----------+---------
 id          | character varying(32)    |           | not null |
 url         | character varying(1024)  |           | not null |
 data        | jsonb                    |           |          |
 timestamp   | timestamptz              |           |          |
*/

// Catalog represents one configured publication target. Eligibility rules and
// the optional external mirror are selected by the catalog's ID; the row
// carries its public URL and any global data published for the catalog.
type Catalog struct {
	ID        catcommon.CatalogId `db:"id"`
	Url       string              `db:"url"`
	Data      pgtype.JSONB        `db:"data"`
	Timestamp sql.NullTime        `db:"timestamp"`
}

// CatalogSummary is a catalog row together with its published record count,
// as returned by catalog listings.
type CatalogSummary struct {
	ID          catcommon.CatalogId `json:"id"`
	Url         string              `json:"url"`
	RecordCount int64               `json:"record_count"`
}
