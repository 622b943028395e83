package driving

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// CursorService is the operator surface over sync cursors.
type CursorService interface {
	// List returns all cursors.
	List(ctx context.Context) ([]domain.SyncCursor, error)

	// Get returns one cursor, or domain.ErrNotFound.
	Get(ctx context.Context, source domain.SourceName, entityType domain.EntityType) (*domain.SyncCursor, error)

	// Reset clears a cursor's positional fields so the next run starts
	// from empty.
	Reset(ctx context.Context, source domain.SourceName, entityType domain.EntityType) error
}
