// Package mirror synchronizes reconciled catalog state with an external
// registry. Synchronization is bookkeeping-driven: every catalog record whose
// synced flag is not set is pushed (or deleted) until the registry confirms,
// and failures are recorded on the row for the next run to retry.
package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/datapub/datapub/internal/catalogsrv/catcommon"
	"github.com/datapub/datapub/internal/catalogsrv/db"
	"github.com/datapub/datapub/internal/catalogsrv/db/models"
	"github.com/datapub/datapub/internal/common/apperrors"
)

var ErrMirror apperrors.Error = apperrors.New("mirror sync error")

// Target is an external registry endpoint. Implementations must be
// idempotent: repeating an upsert or delete for the same identifier is
// harmless.
type Target interface {
	// Upsert creates or updates the registry entry for the identifier.
	Upsert(ctx context.Context, externalID string, payload []byte) error
	// Delete removes the registry entry. Deleting an absent entry is not an
	// error.
	Delete(ctx context.Context, externalID string) error
}

// permanentError marks errors that retrying cannot fix.
type permanentError interface {
	Permanent() bool
}

// Synchronizer pushes pending catalog records to a Target with bounded
// retries and exponential backoff per record.
type Synchronizer struct {
	target   Target
	attempts uint
	delay    time.Duration
}

// NewSynchronizer returns a Synchronizer making at most attempts tries per
// record, starting from the given backoff delay.
func NewSynchronizer(target Target, attempts uint, delay time.Duration) *Synchronizer {
	if attempts == 0 {
		attempts = 1
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Synchronizer{target: target, attempts: attempts, delay: delay}
}

// Sync pushes every pending record of the catalog to the target and records
// the outcome on the row. A record that keeps failing stays pending with its
// error and attempt count; it never blocks other records.
func (s *Synchronizer) Sync(ctx context.Context, catalogID catcommon.CatalogId) (int, int, apperrors.Error) {
	candidates, err := db.DB(ctx).ListPendingSync(ctx, catalogID)
	if err != nil {
		return 0, 0, ErrMirror.Err(err)
	}

	synced, failed := 0, 0
	for _, c := range candidates {
		syncErr := s.syncOne(ctx, &c)

		msg := ""
		if syncErr != nil {
			msg = syncErr.Error()
		}
		if err := db.DB(ctx).SetSyncResult(ctx, catalogID, c.RecordID, msg); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("record_id", c.RecordID.String()).
				Msg("failed to record sync result")
			failed++
			continue
		}

		if syncErr != nil {
			log.Ctx(ctx).Warn().Err(syncErr).
				Str("record_id", c.RecordID.String()).
				Str("doi", c.DOI).
				Int("error_count", c.ErrorCount+1).
				Msg("record sync failed")
			failed++
		} else {
			synced++
		}
	}
	return synced, failed, nil
}

func (s *Synchronizer) syncOne(ctx context.Context, c *models.SyncCandidate) error {
	if c.DOI == "" {
		if c.Published {
			// published without an external identifier is an evaluator bug
			return errors.New("record has no external identifier")
		}
		// never registered, nothing to remove
		return nil
	}

	op := func() error {
		var err error
		if c.Published {
			err = s.target.Upsert(ctx, c.DOI, c.Payload)
		} else {
			err = s.target.Delete(ctx, c.DOI)
		}
		var p permanentError
		if errors.As(err, &p) && p.Permanent() {
			return retry.Unrecoverable(err)
		}
		return err
	}

	return retry.Do(op,
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}
