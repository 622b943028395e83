package driven

import (
	"context"
	"time"
)

// LockManager provides named mutual exclusion across processes, so
// overlapping scheduled triggers never run the same source concurrently.
type LockManager interface {
	// Acquire takes the named lock for at most ttl. An expired lock may be
	// taken over. Returns domain.ErrLockHeld when another holder is live.
	Acquire(ctx context.Context, name string, ttl time.Duration) error

	// Release frees the named lock. Releasing a lock this process does not
	// hold is a no-op.
	Release(ctx context.Context, name string) error
}
