package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/core/ports/driving"
	"github.com/custodia-labs/recsync/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.SyncService = (*Orchestrator)(nil)

// Orchestrator drives the overall run: which adapters to invoke, in what
// order, full vs incremental mode, named run locks, and outcome
// aggregation. One adapter's failure never prevents the others from
// running.
type Orchestrator struct {
	runner     *Runner
	connectors map[domain.SourceName]driven.Connector
	locks      driven.LockManager
	cache      driven.CacheInvalidator
	synclogs   driven.SyncLogStore
	cfg        domain.SyncConfig
}

// NewOrchestrator wires the orchestrator. Connectors missing from the map
// are skipped (a source can be left unconfigured). cache may be nil.
func NewOrchestrator(
	runner *Runner,
	connectors map[domain.SourceName]driven.Connector,
	locks driven.LockManager,
	cache driven.CacheInvalidator,
	synclogs driven.SyncLogStore,
	cfg domain.SyncConfig,
) *Orchestrator {
	return &Orchestrator{
		runner:     runner,
		connectors: connectors,
		locks:      locks,
		cache:      cache,
		synclogs:   synclogs,
		cfg:        cfg,
	}
}

// RunAll invokes every configured adapter in dependency order: the source
// owning the master identity (splynx) runs before sources that only enrich
// existing records.
func (o *Orchestrator) RunAll(ctx context.Context, fullSync bool) ([]domain.RunOutcome, domain.RunVerdict) {
	var outcomes []domain.RunOutcome
	for _, source := range domain.SourceOrder {
		if _, ok := o.connectors[source]; !ok {
			continue
		}
		outcomes = append(outcomes, o.runOne(ctx, source, fullSync))
	}

	verdict := domain.Verdict(outcomes)
	if verdict != domain.VerdictFailed {
		o.purgeAggregates(ctx)
	}
	logger.Info("sync run finished: %s", verdict)
	return outcomes, verdict
}

// RunOne runs a single source's adapter and, on success, emits the cache
// invalidation signal.
func (o *Orchestrator) RunOne(ctx context.Context, source domain.SourceName, fullSync bool) domain.RunOutcome {
	outcome := o.runOne(ctx, source, fullSync)
	if !outcome.Failed() && !outcome.Skipped {
		o.purgeAggregates(ctx)
	}
	return outcome
}

func (o *Orchestrator) runOne(ctx context.Context, source domain.SourceName, fullSync bool) domain.RunOutcome {
	conn, ok := o.connectors[source]
	if !ok {
		return domain.RunOutcome{Source: source, Err: domain.ErrNotFound}
	}

	ttl := o.cfg.LockTimeout
	if fullSync {
		ttl = o.cfg.FullLockTimeout
	}

	lock := source.LockName()
	if err := o.locks.Acquire(ctx, lock, ttl); err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			logger.Info("%s sync skipped: lock held by another run", source)
			return domain.RunOutcome{Source: source, Skipped: true, Err: err}
		}
		return domain.RunOutcome{Source: source, Err: err}
	}
	defer func() {
		if err := o.locks.Release(ctx, lock); err != nil {
			logger.Warn("release lock %s: %v", lock, err)
		}
	}()

	logs, err := o.runner.SyncAll(ctx, conn, fullSync)
	return domain.RunOutcome{Source: source, Logs: logs, Err: err}
}

// TestConnection checks whether a source is reachable and authenticated.
func (o *Orchestrator) TestConnection(ctx context.Context, source domain.SourceName) bool {
	conn, ok := o.connectors[source]
	if !ok {
		return false
	}
	return conn.TestConnection(ctx)
}

// RecentLogs lists recent run records, optionally filtered by source.
func (o *Orchestrator) RecentLogs(ctx context.Context, source domain.SourceName, limit int) ([]domain.SyncLog, error) {
	return o.synclogs.ListRecent(ctx, source, limit)
}

// purgeAggregates emits the derived-aggregate invalidation signal.
// Delivery failure is logged, never fatal to the sync run.
func (o *Orchestrator) purgeAggregates(ctx context.Context) {
	if o.cache == nil {
		return
	}
	purgeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := o.cache.PurgeAggregates(purgeCtx); err != nil {
		logger.Warn("cache invalidation signal failed: %v", err)
	}
}
