package driven

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// CursorStore persists incremental sync watermarks, one row per
// (source, entity type) pair.
type CursorStore interface {
	// Get retrieves the cursor for a pair. Returns domain.ErrNotFound if
	// the pair has never synced.
	Get(ctx context.Context, source domain.SourceName, entityType domain.EntityType) (*domain.SyncCursor, error)

	// Update merges only the supplied fields into the stored cursor,
	// always increments RecordsSynced by recordsDelta and stamps
	// LastSyncAt. Creates the row lazily if absent.
	Update(ctx context.Context, source domain.SourceName, entityType domain.EntityType, u domain.CursorUpdate, recordsDelta int64) error

	// Reset nulls all positional fields without deleting the row, so the
	// next run starts from empty. A no-op if the row does not exist.
	Reset(ctx context.Context, source domain.SourceName, entityType domain.EntityType) error

	// List returns all cursors, for the operator surface.
	List(ctx context.Context) ([]domain.SyncCursor, error)
}
