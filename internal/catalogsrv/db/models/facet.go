package models

import (
	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/common/uuid"
)

/*
   Column   |    Type     | Collation | Nullable |      Default
------------+-------------+-----------+----------+--------------------
 id         | bigint      |           | not null | generated always as identity
 catalog_id | varchar(32) |           | not null |
 record_id  | uuid        |           | not null |
 facet      | text        |           | not null |
 value      | text        |           | not null |
*/

// CatalogRecordFacet is one facet/value pair indexed for a catalog record.
// The set of rows for a record is replaced wholesale on every reconciliation,
// never patched incrementally.
type CatalogRecordFacet struct {
	ID        int64               `db:"id"`
	CatalogID catcommon.CatalogId `db:"catalog_id"`
	RecordID  uuid.UUID           `db:"record_id"`
	Facet     string              `db:"facet"`
	Value     string              `db:"value"`
}

// FacetValue is a facet/value pair without row identity, as produced by rule
// evaluation and consumed by facet queries.
type FacetValue struct {
	Facet string `json:"facet"`
	Value string `json:"value"`
}
