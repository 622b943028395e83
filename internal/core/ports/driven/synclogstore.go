package driven

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// SyncLogStore persists run records.
type SyncLogStore interface {
	// Create inserts a run record in the started state and populates its ID.
	Create(ctx context.Context, log *domain.SyncLog) error

	// Update persists counter and lifecycle changes for an existing record.
	Update(ctx context.Context, log *domain.SyncLog) error

	// ListRecent returns the most recent run records, newest first,
	// optionally filtered by source (empty for all), up to limit.
	ListRecent(ctx context.Context, source domain.SourceName, limit int) ([]domain.SyncLog, error)
}
