package postgresql

import (
	"context"
	"database/sql"

	"github.com/datapub/datapub/internal/catalogsrv/db/dbmanager"
)

// Record Store: consistent snapshot reads of the source-of-truth tables.
type recordStore struct {
	c dbmanager.Conn
}

func (rs *recordStore) conn() *sql.Conn {
	return rs.c.Conn()
}

func newRecordStore(c dbmanager.Conn) *recordStore {
	return &recordStore{c: c}
}

// State Manager: reconciled per-catalog state and mirror bookkeeping.
type stateManager struct {
	c dbmanager.Conn
}

func (sm *stateManager) conn() *sql.Conn {
	return sm.c.Conn()
}

func newStateManager(c dbmanager.Conn) *stateManager {
	return &stateManager{c: c}
}

// Query Manager: read-only list and search queries.
type queryManager struct {
	c dbmanager.Conn
}

func (qm *queryManager) conn() *sql.Conn {
	return qm.c.Conn()
}

func newQueryManager(c dbmanager.Conn) *queryManager {
	return &queryManager{c: c}
}

// Connection Manager
type connectionManager struct {
	c dbmanager.Conn
}

func newConnectionManager(c dbmanager.Conn) *connectionManager {
	return &connectionManager{c: c}
}

func (cm *connectionManager) Close(ctx context.Context) {
	cm.c.Close(ctx)
}
