// Package publish implements the publication pipeline: snapshotting the
// source record tables, evaluating each record against a catalog's publish
// rules, and reconciling the derived catalog state.
package publish

import (
	"github.com/datapub/datapub/internal/common/apperrors"
)

var (
	ErrPublish        apperrors.Error = apperrors.New("publish error")
	ErrUnknownCatalog apperrors.Error = ErrPublish.New("no evaluator registered for catalog")
	ErrReconciliation apperrors.Error = ErrPublish.New("record reconciliation failed")
)
