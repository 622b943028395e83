package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// FailedRecordStore persists dead-letter queue entries. Entries are never
// hard-deleted; resolution is a flag, keeping the audit trail intact.
type FailedRecordStore interface {
	// Enqueue creates a new entry with RetryCount 0. The record's ID is
	// populated on return.
	Enqueue(ctx context.Context, record *domain.FailedSyncRecord) error

	// Get retrieves an entry by id.
	Get(ctx context.Context, id int64) (*domain.FailedSyncRecord, error)

	// Update persists retry/resolution bookkeeping for an existing entry.
	Update(ctx context.Context, record *domain.FailedSyncRecord) error

	// ListDue returns unresolved entries whose NextRetryAt <= now and
	// RetryCount < MaxRetries, oldest first, up to limit.
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.FailedSyncRecord, error)

	// List returns entries filtered by source (empty for all) and
	// resolution state, newest first, up to limit.
	List(ctx context.Context, source domain.SourceName, includeResolved bool, limit int) ([]domain.FailedSyncRecord, error)

	// Stats returns pending and resolved counts per source.
	Stats(ctx context.Context) (map[domain.SourceName]QueueStats, error)
}

// QueueStats summarizes one source's dead-letter queue.
type QueueStats struct {
	Pending  int
	Resolved int
}
