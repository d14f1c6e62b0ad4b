// Package postgresql implements the catalog service database interfaces for
// PostgreSQL.
package postgresql

import (
	"github.com/datapub/datapub/internal/catalogsrv/db/dbmanager"
)

type catalogDb struct {
	rs *recordStore
	sm *stateManager
	qm *queryManager
	cm *connectionManager
}

func NewCatalogDb(c dbmanager.Conn) (*recordStore, *stateManager, *queryManager, *connectionManager) {
	h := &catalogDb{}
	h.rs = newRecordStore(c)
	h.sm = newStateManager(c)
	h.qm = newQueryManager(c)
	h.cm = newConnectionManager(c)
	return h.rs, h.sm, h.qm, h.cm
}
