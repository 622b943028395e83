// Package memory provides in-memory implementations of the driven storage
// ports, used by service tests and as a fallback when no data directory is
// available.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Ensure CursorStore implements the interface.
var _ driven.CursorStore = (*CursorStore)(nil)

// CursorStore is an in-memory implementation of driven.CursorStore.
type CursorStore struct {
	mu      sync.RWMutex
	cursors map[string]domain.SyncCursor
	now     func() time.Time
}

// NewCursorStore creates a new in-memory cursor store.
func NewCursorStore() *CursorStore {
	return &CursorStore{
		cursors: make(map[string]domain.SyncCursor),
		now:     time.Now,
	}
}

func cursorKey(source domain.SourceName, entityType domain.EntityType) string {
	return string(source) + "/" + string(entityType)
}

// Get retrieves the cursor for a (source, entity type) pair.
func (s *CursorStore) Get(_ context.Context, source domain.SourceName, entityType domain.EntityType) (*domain.SyncCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[cursorKey(source, entityType)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

// Update merges the supplied fields, creating the row lazily.
func (s *CursorStore) Update(_ context.Context, source domain.SourceName, entityType domain.EntityType, u domain.CursorUpdate, recordsDelta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cursorKey(source, entityType)
	c, ok := s.cursors[key]
	if !ok {
		c = domain.SyncCursor{Source: source, EntityType: entityType}
	}
	c.Apply(u, recordsDelta, s.now())
	s.cursors[key] = c
	return nil
}

// Reset nulls positional fields without deleting the row.
func (s *CursorStore) Reset(_ context.Context, source domain.SourceName, entityType domain.EntityType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := cursorKey(source, entityType)
	c, ok := s.cursors[key]
	if !ok {
		return nil
	}
	c.Reset()
	s.cursors[key] = c
	return nil
}

// List returns all cursors in a stable order.
func (s *CursorStore) List(_ context.Context) ([]domain.SyncCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SyncCursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].EntityType < out[j].EntityType
	})
	return out, nil
}
