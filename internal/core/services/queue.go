package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/core/ports/driving"
	"github.com/custodia-labs/recsync/internal/logger"
)

// Ensure QueueProcessor implements the interface.
var _ driving.QueueService = (*QueueProcessor)(nil)

// retrySweepLimit bounds one retry sweep.
const retrySweepLimit = 200

// QueueProcessor is the dead-letter queue's retry processor and operator
// surface. The processor does not re-fetch records itself: it advances
// retry bookkeeping and relies on the next scheduled incremental run to
// naturally re-fetch a failed record, since the cursor watermark never
// advanced past it.
type QueueProcessor struct {
	store driven.FailedRecordStore
	now   func() time.Time
}

// NewQueueProcessor creates the processor over the queue store.
func NewQueueProcessor(store driven.FailedRecordStore) *QueueProcessor {
	return &QueueProcessor{store: store, now: time.Now}
}

// ProcessDue runs one retry sweep over unresolved entries that are due,
// marking a retry (exponential backoff, terminal at the retry budget) on
// each. Returns how many entries were re-armed.
func (q *QueueProcessor) ProcessDue(ctx context.Context) (int, error) {
	now := q.now()
	due, err := q.store.ListDue(ctx, now, retrySweepLimit)
	if err != nil {
		return 0, fmt.Errorf("list due entries: %w", err)
	}

	processed := 0
	for i := range due {
		rec := &due[i]
		rec.MarkRetry(now)
		if err := q.store.Update(ctx, rec); err != nil {
			logger.Error("update dead-letter entry %d: %v", rec.ID, err)
			continue
		}
		if rec.IsResolved {
			logger.Warn("dead-letter entry %d (%s %s %s) exhausted retries", rec.ID, rec.Source, rec.EntityType, rec.ExternalID)
		}
		processed++
	}
	if processed > 0 {
		logger.Info("retry sweep re-armed %d dead-letter entries", processed)
	}
	return processed, nil
}

// List returns queue entries for the operator surface.
func (q *QueueProcessor) List(ctx context.Context, source domain.SourceName, includeResolved bool, limit int) ([]domain.FailedSyncRecord, error) {
	return q.store.List(ctx, source, includeResolved, limit)
}

// Retry re-arms one entry immediately so the next sweep picks it up.
func (q *QueueProcessor) Retry(ctx context.Context, id int64) error {
	rec, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.IsResolved {
		return fmt.Errorf("%w: entry %d is resolved", domain.ErrInvalidInput, id)
	}
	rec.NextRetryAt = q.now()
	return q.store.Update(ctx, rec)
}

// Resolve annotates manual remediation and marks the entry terminal.
func (q *QueueProcessor) Resolve(ctx context.Context, id int64, notes string) error {
	rec, err := q.store.Get(ctx, id)
	if err != nil {
		return err
	}
	rec.MarkResolved(notes, q.now())
	return q.store.Update(ctx, rec)
}

// Stats returns per-source queue counts.
func (q *QueueProcessor) Stats(ctx context.Context) (map[domain.SourceName]driven.QueueStats, error) {
	return q.store.Stats(ctx)
}
