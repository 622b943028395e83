package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// Ensure LockManager implements the interface.
var _ driven.LockManager = (*LockManager)(nil)

// LockManager is an in-process implementation of driven.LockManager.
// Locks expire after their ttl, mirroring the SQLite manager's takeover
// rule.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]time.Time
	now   func() time.Time
}

// NewLockManager creates a new in-memory lock manager.
func NewLockManager() *LockManager {
	return &LockManager{
		locks: make(map[string]time.Time),
		now:   time.Now,
	}
}

// Acquire takes the named lock for at most ttl.
func (m *LockManager) Acquire(_ context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if expiry, ok := m.locks[name]; ok && expiry.After(m.now()) {
		return fmt.Errorf("%w: %s", domain.ErrLockHeld, name)
	}
	m.locks[name] = m.now().Add(ttl)
	return nil
}

// Release frees the named lock.
func (m *LockManager) Release(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, name)
	return nil
}
