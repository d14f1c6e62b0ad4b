package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/common/uuid"
)

/*
      Column      |    Type     | Collation | Nullable | Default
------------------+-------------+-----------+----------+---------
 catalog_id       | varchar(32) |           | not null |
 record_id        | uuid        |           | not null |
 published        | boolean     |           | not null |
 searchable       | boolean     |           |          |
 reason           | text        |           |          |
 timestamp        | timestamptz |           | not null |
 published_record | jsonb       |           |          |
 full_text        | tsvector    |           |          |
 spatial_north    | numeric     |           |          |
 spatial_south    | numeric     |           |          |
 spatial_east     | numeric     |           |          |
 spatial_west     | numeric     |           |          |
 temporal_start   | timestamptz |           |          |
 temporal_end     | timestamptz |           |          |
 synced           | boolean     |           |          |
 error            | text        |           |          |
 error_count      | integer     |           |          |

 PRIMARY KEY (catalog_id, record_id)
*/

// CatalogRecord is the reconciled per-(catalog, record) state. Rows are never
// deleted: when a record becomes ineligible the row is retained with
// published=false as a retraction stub so consumers and mirrors can detect
// the removal. A NULL searchable is equivalent to true in every filter path.
type CatalogRecord struct {
	CatalogID       catcommon.CatalogId `db:"catalog_id"`
	RecordID        uuid.UUID           `db:"record_id"`
	Published       bool                `db:"published"`
	Searchable      sql.NullBool        `db:"searchable"`
	Reason          string              `db:"reason"`
	Timestamp       time.Time           `db:"timestamp"`
	PublishedRecord json.RawMessage     `db:"published_record"`
	FullText        string              `db:"full_text"`
	SpatialNorth    *float64            `db:"spatial_north"`
	SpatialSouth    *float64            `db:"spatial_south"`
	SpatialEast     *float64            `db:"spatial_east"`
	SpatialWest     *float64            `db:"spatial_west"`
	TemporalStart   *time.Time          `db:"temporal_start"`
	TemporalEnd     *time.Time          `db:"temporal_end"`

	// external mirror bookkeeping
	Synced     sql.NullBool   `db:"synced"`
	Error      sql.NullString `db:"error"`
	ErrorCount int            `db:"error_count"`
}

// IsSearchable reports the effective searchability: NULL means true.
func (cr *CatalogRecord) IsSearchable() bool {
	return !cr.Searchable.Valid || cr.Searchable.Bool
}

// SyncCandidate is a catalog record whose local published state has not been
// confirmed against the external mirror. DOI is the stable external
// identifier; empty when the record has none.
type SyncCandidate struct {
	CatalogID  catcommon.CatalogId
	RecordID   uuid.UUID
	Published  bool
	Payload    json.RawMessage
	DOI        string
	ErrorCount int
}
