package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Ensure FailedRecordStore implements the interface.
var _ driven.FailedRecordStore = (*FailedRecordStore)(nil)

// FailedRecordStore is an in-memory implementation of
// driven.FailedRecordStore.
type FailedRecordStore struct {
	mu      sync.RWMutex
	nextID  int64
	entries map[int64]domain.FailedSyncRecord
}

// NewFailedRecordStore creates a new in-memory dead-letter queue store.
func NewFailedRecordStore() *FailedRecordStore {
	return &FailedRecordStore{entries: make(map[int64]domain.FailedSyncRecord)}
}

// Enqueue creates a new entry and assigns its id.
func (s *FailedRecordStore) Enqueue(_ context.Context, record *domain.FailedSyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	s.entries[record.ID] = *record
	return nil
}

// Get retrieves an entry by id.
func (s *FailedRecordStore) Get(_ context.Context, id int64) (*domain.FailedSyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

// Update persists bookkeeping for an existing entry.
func (s *FailedRecordStore) Update(_ context.Context, record *domain.FailedSyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[record.ID]; !ok {
		return domain.ErrNotFound
	}
	s.entries[record.ID] = *record
	return nil
}

// ListDue returns unresolved due entries, oldest first.
func (s *FailedRecordStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.FailedSyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FailedSyncRecord
	for _, e := range s.entries {
		if e.Retryable(now) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// List returns entries filtered by source and resolution state, newest
// first.
func (s *FailedRecordStore) List(_ context.Context, source domain.SourceName, includeResolved bool, limit int) ([]domain.FailedSyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.FailedSyncRecord
	for _, e := range s.entries {
		if source != "" && e.Source != source {
			continue
		}
		if e.IsResolved && !includeResolved {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats returns pending and resolved counts per source.
func (s *FailedRecordStore) Stats(_ context.Context) (map[domain.SourceName]driven.QueueStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[domain.SourceName]driven.QueueStats)
	for _, e := range s.entries {
		st := stats[e.Source]
		if e.IsResolved {
			st.Resolved++
		} else {
			st.Pending++
		}
		stats[e.Source] = st
	}
	return stats, nil
}
