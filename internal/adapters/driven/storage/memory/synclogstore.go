package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Ensure SyncLogStore implements the interface.
var _ driven.SyncLogStore = (*SyncLogStore)(nil)

// SyncLogStore is an in-memory implementation of driven.SyncLogStore.
type SyncLogStore struct {
	mu     sync.RWMutex
	nextID int64
	logs   map[int64]domain.SyncLog
}

// NewSyncLogStore creates a new in-memory run record store.
func NewSyncLogStore() *SyncLogStore {
	return &SyncLogStore{logs: make(map[int64]domain.SyncLog)}
}

// Create inserts a run record and assigns its id.
func (s *SyncLogStore) Create(_ context.Context, log *domain.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	log.ID = s.nextID
	s.logs[log.ID] = *log
	return nil
}

// Update persists changes to an existing record.
func (s *SyncLogStore) Update(_ context.Context, log *domain.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.logs[log.ID]; !ok {
		return domain.ErrNotFound
	}
	s.logs[log.ID] = *log
	return nil
}

// ListRecent returns run records newest first, optionally filtered.
func (s *SyncLogStore) ListRecent(_ context.Context, source domain.SourceName, limit int) ([]domain.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.SyncLog
	for _, l := range s.logs {
		if source != "" && l.Source != source {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
