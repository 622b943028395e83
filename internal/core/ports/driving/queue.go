package driving

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// QueueService is the operator surface over the dead-letter queue.
type QueueService interface {
	// List returns entries, optionally filtered by source, newest first.
	List(ctx context.Context, source domain.SourceName, includeResolved bool, limit int) ([]domain.FailedSyncRecord, error)

	// Retry re-arms one entry immediately (NextRetryAt = now) so the next
	// retry sweep picks it up, regardless of backoff.
	Retry(ctx context.Context, id int64) error

	// Resolve annotates manual remediation and marks the entry terminal.
	Resolve(ctx context.Context, id int64, notes string) error

	// ProcessDue runs one retry sweep: advances bookkeeping for every due
	// entry and returns how many were re-armed.
	ProcessDue(ctx context.Context) (int, error)

	// Stats returns per-source queue counts.
	Stats(ctx context.Context) (map[domain.SourceName]driven.QueueStats, error)
}
