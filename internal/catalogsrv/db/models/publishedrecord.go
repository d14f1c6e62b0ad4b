package models

import (
	"database/sql"
	"time"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/common/uuid"
)

/*
    Column     |    Type     | Collation | Nullable | Default
---------------+-------------+-----------+----------+---------
 catalog_id    | varchar(32) |           | not null |
 record_id     | uuid        |           | not null |
 doi           | text        |           |          |
 id_published  | timestamptz |           | not null | now()
 doi_published | timestamptz |           |          |

 PRIMARY KEY (catalog_id, record_id)
*/

// PublishedRecord is the marker row present iff the record is currently
// published for the catalog. Its absence while a CatalogRecord row exists is
// precisely the retracted condition. The first-publication timestamps for the
// record ID and its DOI are preserved across republications.
type PublishedRecord struct {
	CatalogID    catcommon.CatalogId `db:"catalog_id"`
	RecordID     uuid.UUID           `db:"record_id"`
	DOI          sql.NullString      `db:"doi"`
	IDPublished  time.Time           `db:"id_published"`
	DOIPublished sql.NullTime        `db:"doi_published"`
}
