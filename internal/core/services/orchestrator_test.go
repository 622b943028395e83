package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

type mockInvalidator struct {
	calls int
	err   error
}

func (m *mockInvalidator) PurgeAggregates(context.Context) error {
	m.calls++
	return m.err
}

type orchFixture struct {
	*runnerFixture
	orch  *Orchestrator
	locks *memory.LockManager
	cache *mockInvalidator
	conns map[domain.SourceName]driven.Connector
}

func newOrchFixture(t *testing.T, conns map[domain.SourceName]driven.Connector) *orchFixture {
	t.Helper()
	f := &orchFixture{
		runnerFixture: newRunnerFixture(t),
		locks:         memory.NewLockManager(),
		cache:         &mockInvalidator{},
		conns:         conns,
	}
	f.orch = NewOrchestrator(f.runner, conns, f.locks, f.cache, f.synclogs, domain.SyncConfig{
		PageSize:           100,
		IncrementalPageCap: 20,
		FullPageCap:        500,
		BatchSize:          500,
		LockTimeout:        15 * time.Minute,
		FullLockTimeout:    2 * time.Hour,
	})
	return f
}

func emptyConnector(source domain.SourceName) *syncMockConnector {
	return &syncMockConnector{
		source:   source,
		entities: []domain.EntityType{domain.EntityCustomers},
	}
}

func TestOrchestratorRunsSourcesInDependencyOrder(t *testing.T) {
	var order []domain.SourceName
	conns := map[domain.SourceName]driven.Connector{}
	for _, s := range []domain.SourceName{domain.SourceChatwoot, domain.SourceSplynx, domain.SourceERPNext} {
		s := s
		conns[s] = &orderRecordingConnector{syncMockConnector: emptyConnector(s), order: &order}
	}
	f := newOrchFixture(t, conns)

	outcomes, verdict := f.orch.RunAll(context.Background(), false)
	require.Len(t, outcomes, 3)
	assert.Equal(t, domain.VerdictSuccess, verdict)
	assert.Equal(t, []domain.SourceName{domain.SourceSplynx, domain.SourceERPNext, domain.SourceChatwoot}, order)
	assert.Equal(t, 1, f.cache.calls)
}

type orderRecordingConnector struct {
	*syncMockConnector
	order *[]domain.SourceName
}

func (c *orderRecordingConnector) FetchPage(ctx context.Context, entityType domain.EntityType, req driven.PageRequest) (*driven.RecordPage, error) {
	if req.Page == 1 {
		*c.order = append(*c.order, c.source)
	}
	return c.syncMockConnector.FetchPage(ctx, entityType, req)
}

func TestOrchestratorOneSourceFailingDoesNotStopOthers(t *testing.T) {
	failing := emptyConnector(domain.SourceSplynx)
	failing.fetchErr = domain.ErrConnection
	conns := map[domain.SourceName]driven.Connector{
		domain.SourceSplynx:  failing,
		domain.SourceERPNext: emptyConnector(domain.SourceERPNext),
	}
	f := newOrchFixture(t, conns)

	outcomes, verdict := f.orch.RunAll(context.Background(), false)
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.VerdictPartial, verdict)
	assert.True(t, outcomes[0].Failed())
	assert.False(t, outcomes[1].Failed())
	assert.Equal(t, 1, f.cache.calls, "partial runs still purge aggregates")
}

func TestOrchestratorBreakerIsolatesSources(t *testing.T) {
	conns := map[domain.SourceName]driven.Connector{
		domain.SourceSplynx:  emptyConnector(domain.SourceSplynx),
		domain.SourceERPNext: emptyConnector(domain.SourceERPNext),
	}
	f := newOrchFixture(t, conns)

	splynxBreaker := f.breakers.For(domain.SourceSplynx)
	for i := 0; i < 5; i++ {
		splynxBreaker.RecordFailure(domain.ErrConnection)
	}
	require.Equal(t, BreakerOpen, splynxBreaker.State())

	outcomes, verdict := f.orch.RunAll(context.Background(), false)
	require.Len(t, outcomes, 2)
	assert.Equal(t, domain.VerdictPartial, verdict)

	assert.True(t, errors.Is(outcomes[0].Err, domain.ErrBreakerOpen))
	assert.Equal(t, 0, conns[domain.SourceSplynx].(*syncMockConnector).fetchCalls)

	assert.NoError(t, outcomes[1].Err)
	assert.Equal(t, 1, conns[domain.SourceERPNext].(*syncMockConnector).fetchCalls)
}

func TestOrchestratorSkipsWhenLockHeld(t *testing.T) {
	conns := map[domain.SourceName]driven.Connector{
		domain.SourceSplynx: emptyConnector(domain.SourceSplynx),
	}
	f := newOrchFixture(t, conns)

	ctx := context.Background()
	require.NoError(t, f.locks.Acquire(ctx, domain.SourceSplynx.LockName(), time.Minute))

	outcome := f.orch.RunOne(ctx, domain.SourceSplynx, false)
	assert.True(t, outcome.Skipped)
	assert.ErrorIs(t, outcome.Err, domain.ErrLockHeld)
	assert.Equal(t, 0, conns[domain.SourceSplynx].(*syncMockConnector).fetchCalls)
	assert.Equal(t, 0, f.cache.calls, "skipped run emits no invalidation signal")
}

func TestOrchestratorReleasesLockAfterRun(t *testing.T) {
	conns := map[domain.SourceName]driven.Connector{
		domain.SourceSplynx: emptyConnector(domain.SourceSplynx),
	}
	f := newOrchFixture(t, conns)
	ctx := context.Background()

	outcome := f.orch.RunOne(ctx, domain.SourceSplynx, false)
	require.NoError(t, outcome.Err)

	// If the lock leaked this second acquire would fail.
	assert.NoError(t, f.locks.Acquire(ctx, domain.SourceSplynx.LockName(), time.Minute))
}

func TestOrchestratorUnknownSource(t *testing.T) {
	f := newOrchFixture(t, map[domain.SourceName]driven.Connector{})
	outcome := f.orch.RunOne(context.Background(), domain.SourceSplynx, false)
	assert.ErrorIs(t, outcome.Err, domain.ErrNotFound)
}

func TestOrchestratorCachePurgeFailureIsNotFatal(t *testing.T) {
	conns := map[domain.SourceName]driven.Connector{
		domain.SourceSplynx: emptyConnector(domain.SourceSplynx),
	}
	f := newOrchFixture(t, conns)
	f.cache.err = errors.New("purge endpoint unreachable")

	_, verdict := f.orch.RunAll(context.Background(), false)
	assert.Equal(t, domain.VerdictSuccess, verdict)
	assert.Equal(t, 1, f.cache.calls)
}
