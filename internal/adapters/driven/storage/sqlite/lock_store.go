package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// lockManager implements driven.LockManager over the sync_locks table.
// Each process gets a random holder id; an expired lock may be taken over
// by any holder, so a crashed run never wedges its source permanently.
type lockManager struct {
	store  *Store
	holder string
}

var _ driven.LockManager = (*lockManager)(nil)

func newLockManager(store *Store) *lockManager {
	return &lockManager{store: store, holder: uuid.NewString()}
}

// Acquire takes the named lock for at most ttl. The conditional upsert is
// a single statement, so two concurrent acquirers cannot both win.
func (l *lockManager) Acquire(ctx context.Context, name string, ttl time.Duration) error {
	now := time.Now().UTC()
	res, err := l.store.db.ExecContext(ctx, `
		INSERT INTO sync_locks (name, holder, acquired_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			holder = excluded.holder,
			acquired_at = excluded.acquired_at,
			expires_at = excluded.expires_at
		WHERE sync_locks.expires_at <= excluded.acquired_at
		   OR sync_locks.holder = excluded.holder
	`, name, l.holder,
		now.Format(time.RFC3339), now.Add(ttl).Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", name, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking lock acquisition: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrLockHeld, name)
	}
	return nil
}

// Release frees the named lock. Releasing a lock this process does not
// hold is a no-op.
func (l *lockManager) Release(ctx context.Context, name string) error {
	_, err := l.store.db.ExecContext(ctx,
		"DELETE FROM sync_locks WHERE name = ? AND holder = ?", name, l.holder)
	if err != nil {
		return fmt.Errorf("releasing lock %s: %w", name, err)
	}
	return nil
}
