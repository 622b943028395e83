package services

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/core/ports/driving"
	"github.com/custodia-labs/recsync/internal/logger"
)

// Ensure CursorAdmin implements the interface.
var _ driving.CursorService = (*CursorAdmin)(nil)

// CursorAdmin is the operator surface over sync cursors.
type CursorAdmin struct {
	store driven.CursorStore
}

// NewCursorAdmin creates the cursor admin service.
func NewCursorAdmin(store driven.CursorStore) *CursorAdmin {
	return &CursorAdmin{store: store}
}

// List returns all cursors.
func (c *CursorAdmin) List(ctx context.Context) ([]domain.SyncCursor, error) {
	return c.store.List(ctx)
}

// Get returns one cursor.
func (c *CursorAdmin) Get(ctx context.Context, source domain.SourceName, entityType domain.EntityType) (*domain.SyncCursor, error) {
	return c.store.Get(ctx, source, entityType)
}

// Reset clears a cursor's positional fields; the next run of that pair
// treats the watermark as absent.
func (c *CursorAdmin) Reset(ctx context.Context, source domain.SourceName, entityType domain.EntityType) error {
	if err := c.store.Reset(ctx, source, entityType); err != nil {
		return err
	}
	logger.Info("cursor reset for %s %s", source, entityType)
	return nil
}
