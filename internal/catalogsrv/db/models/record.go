package models

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/common/uuid"
)

/*
Source-of-truth tables, owned by the record store and read-only to this
service. The snapshot builder projects them into SnapshotEntry values under a
single repeatable-read transaction.

 record(id uuid pk, doi text unique, sid text unique, metadata jsonb,
        validity jsonb, timestamp timestamptz, collection_id uuid,
        parent_id uuid)
 collection(id uuid pk, key text, name text)
 record_tag(id uuid pk, record_id uuid, tag_id text, data jsonb,
        timestamp timestamptz)
 collection_tag(id uuid pk, collection_id uuid, tag_id text, data jsonb,
        timestamp timestamptz)
*/

// Record is the authoritative digital-object row. The timestamp is bumped by
// the record store on any direct edit and on any change to a referencing tag
// or child record.
type Record struct {
	ID           uuid.UUID       `db:"id"`
	DOI          sql.NullString  `db:"doi"`
	SID          sql.NullString  `db:"sid"`
	Metadata     json.RawMessage `db:"metadata"`
	Validity     json.RawMessage `db:"validity"`
	Timestamp    time.Time       `db:"timestamp"`
	CollectionID uuid.UUID       `db:"collection_id"`
	ParentID     uuid.NullUUID   `db:"parent_id"`
}

// TagInstance is a tag attached to a record or to its collection.
type TagInstance struct {
	TagID     string            `db:"tag_id" json:"tag_id"`
	Type      catcommon.TagType `db:"tag_type" json:"tag_type"`
	Data      json.RawMessage   `db:"data" json:"data"`
	Timestamp time.Time         `db:"timestamp" json:"timestamp"`
}

// ChildRef is a reference to a child record, keyed by the stable identifier
// published for the relation.
type ChildRef struct {
	RecordID uuid.UUID `json:"record_id"`
	DOI      string    `json:"doi"`
}

// SnapshotEntry is an ephemeral, read-only projection of one record's full
// API-visible state as of the snapshot's transaction boundary. Collection tags
// are merged into Tags with Type set to TagTypeCollection so evaluators see
// inherited tags without a further lookup.
type SnapshotEntry struct {
	Record         Record
	CollectionKey  string
	CollectionName string
	Tags           []TagInstance
	ParentDOI      string
	Children       []ChildRef
}

// HasTag reports whether the entry carries a tag with the given ID, on the
// record itself or inherited from its collection.
func (e *SnapshotEntry) HasTag(tagID string) bool {
	for _, t := range e.Tags {
		if t.TagID == tagID {
			return true
		}
	}
	return false
}

// TagData returns the data of the first tag with the given ID, or nil.
func (e *SnapshotEntry) TagData(tagID string) json.RawMessage {
	for _, t := range e.Tags {
		if t.TagID == tagID {
			return t.Data
		}
	}
	return nil
}
