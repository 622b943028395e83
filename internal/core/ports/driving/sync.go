package driving

import (
	"context"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// SyncService drives synchronization runs.
type SyncService interface {
	// RunAll invokes every configured adapter in dependency order. Failure
	// in one adapter never prevents the others from running; the verdict
	// aggregates per-adapter outcomes.
	RunAll(ctx context.Context, fullSync bool) ([]domain.RunOutcome, domain.RunVerdict)

	// RunOne runs a single source's adapter.
	RunOne(ctx context.Context, source domain.SourceName, fullSync bool) domain.RunOutcome

	// TestConnection checks whether a source is reachable and
	// authenticated. Never returns an error; false means not ready.
	TestConnection(ctx context.Context, source domain.SourceName) bool

	// RecentLogs lists recent run records, optionally filtered by source.
	RecentLogs(ctx context.Context, source domain.SourceName, limit int) ([]domain.SyncLog, error)
}
