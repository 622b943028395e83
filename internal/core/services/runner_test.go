package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// syncMockConnector implements driven.Connector for testing. Pages are
// served per entity type in order; the last configured page repeats with
// HasMore=false.
type syncMockConnector struct {
	source     domain.SourceName
	entities   []domain.EntityType
	caps       driven.SourceCapabilities
	pages      map[domain.EntityType][]driven.RecordPage
	fetchErr   error
	fetchCalls int
	lastReq    driven.PageRequest
}

func (c *syncMockConnector) Source() domain.SourceName { return c.source }

func (c *syncMockConnector) EntityTypes() []domain.EntityType { return c.entities }

func (c *syncMockConnector) Capabilities(domain.EntityType) driven.SourceCapabilities {
	return c.caps
}

func (c *syncMockConnector) TestConnection(context.Context) bool { return true }

func (c *syncMockConnector) FetchPage(_ context.Context, entityType domain.EntityType, req driven.PageRequest) (*driven.RecordPage, error) {
	c.fetchCalls++
	c.lastReq = req
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	pages := c.pages[entityType]
	if len(pages) == 0 {
		return &driven.RecordPage{}, nil
	}
	idx := req.Page - 1
	if idx >= len(pages) {
		return &driven.RecordPage{}, nil
	}
	page := pages[idx]
	return &page, nil
}

type runnerFixture struct {
	runner   *Runner
	cursors  *memory.CursorStore
	synclogs *memory.SyncLogStore
	queue    *memory.FailedRecordStore
	records  *memory.RecordStore
	breakers *BreakerRegistry
}

func newRunnerFixture(t *testing.T) *runnerFixture {
	t.Helper()
	f := &runnerFixture{
		cursors:  memory.NewCursorStore(),
		synclogs: memory.NewSyncLogStore(),
		queue:    memory.NewFailedRecordStore(),
		records:  memory.NewRecordStore(),
		breakers: NewBreakerRegistry(domain.BreakerConfig{FailMax: 5, ResetTimeout: time.Minute}),
	}
	f.runner = NewRunner(f.cursors, f.synclogs, f.queue, f.records, NewMatcher(f.records), f.breakers, domain.SyncConfig{
		PageSize:           100,
		IncrementalPageCap: 20,
		FullPageCap:        500,
		BatchSize:          500,
	})
	return f
}

func invoicePage(modifiedAt time.Time, ids ...string) driven.RecordPage {
	var page driven.RecordPage
	for _, id := range ids {
		page.Records = append(page.Records, domain.SourceRecord{
			EntityType: domain.EntityInvoices,
			ExternalID: id,
			ModifiedAt: modifiedAt,
			Invoice:    &domain.Invoice{CustomerID: "cust-1", Amount: 100},
		})
	}
	return page
}

func TestRunnerSecondRunCreatesNothing(t *testing.T) {
	f := newRunnerFixture(t)
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {invoicePage(modified, "inv-1", "inv-2")},
		},
	}
	ctx := context.Background()

	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 2, log.RecordsCreated)
	assert.Equal(t, domain.SyncCompleted, log.Status)

	// Same page again: the source has no server-side filter, so both
	// records come back and are dropped client-side against the watermark.
	log, err = f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 2, log.RecordsFetched)
	assert.Equal(t, 0, log.RecordsCreated)
	assert.Equal(t, 0, log.RecordsUpdated)

	_, invoices, _, _ := f.records.Counts()
	assert.Equal(t, 2, invoices)
}

func TestRunnerCursorAdvancesPastSkippedRecords(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	older := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {invoicePage(older, "inv-1")},
		},
	}
	_, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)

	cursor, err := f.cursors.Get(ctx, domain.SourceSplynx, domain.EntityInvoices)
	require.NoError(t, err)
	assert.True(t, cursor.LastModifiedAt.Equal(older))

	// A newer record arrives alongside the unchanged one. The unchanged
	// record is skipped, but the watermark still moves to the true max.
	conn.pages[domain.EntityInvoices] = []driven.RecordPage{{
		Records: append(invoicePage(older, "inv-1").Records, invoicePage(newer, "inv-2").Records...),
	}}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 1, log.RecordsCreated)

	cursor, err = f.cursors.Get(ctx, domain.SourceSplynx, domain.EntityInvoices)
	require.NoError(t, err)
	assert.True(t, cursor.LastModifiedAt.Equal(newer))
	assert.Equal(t, "inv-2", cursor.LastID)
}

func TestRunnerServerSideFilterPassesWatermark(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	conn := &syncMockConnector{
		source:   domain.SourceERPNext,
		entities: []domain.EntityType{domain.EntityInvoices},
		caps:     driven.SourceCapabilities{SupportsModifiedSince: true},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {invoicePage(modified, "inv-1")},
		},
	}
	_, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)

	conn.pages[domain.EntityInvoices] = []driven.RecordPage{{}}
	_, err = f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.True(t, conn.lastReq.ModifiedSince.Equal(modified))
}

func TestRunnerFullSyncResetsCursor(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		caps:     driven.SourceCapabilities{SupportsModifiedSince: true},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {invoicePage(modified, "inv-1")},
		},
	}
	_, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)

	_, err = f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, true)
	require.NoError(t, err)
	assert.True(t, conn.lastReq.ModifiedSince.IsZero(), "full sync must fetch from empty watermark")
}

func TestRunnerBreakerOpenFailsFast(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	breaker := f.breakers.For(domain.SourceSplynx)
	for i := 0; i < 5; i++ {
		breaker.RecordFailure(domain.ErrConnection)
	}
	require.Equal(t, BreakerOpen, breaker.State())

	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
	}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	assert.ErrorIs(t, err, domain.ErrBreakerOpen)
	assert.Equal(t, 0, conn.fetchCalls, "no network attempt while the breaker is open")
	require.NotNil(t, log)
	assert.Equal(t, domain.SyncFailed, log.Status)
}

func TestRunnerConnectionErrorFailsRunAndTripsBreaker(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		fetchErr: domain.ErrConnection,
	}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	assert.ErrorIs(t, err, domain.ErrConnection)
	require.NotNil(t, log)
	assert.Equal(t, domain.SyncFailed, log.Status)
	assert.Equal(t, 1, f.breakers.For(domain.SourceSplynx).FailureCount())
}

func TestRunnerDeadLettersMappingFailure(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	page := invoicePage(modified, "inv-ok")
	page.Records = append(page.Records, domain.SourceRecord{
		EntityType: domain.EntityInvoices,
		ExternalID: "inv-bad",
		ModifiedAt: modified,
		Payload:    []byte(`{"id":"inv-bad"}`),
		MapErr:     domain.ErrRecordMapping,
	})

	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {page},
		},
	}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 1, log.RecordsCreated)
	assert.Equal(t, 1, log.RecordsFailed)
	assert.Equal(t, domain.SyncPartial, log.Status)

	queued, err := f.queue.List(ctx, domain.SourceSplynx, false, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "inv-bad", queued[0].ExternalID)
	assert.Equal(t, "mapping", queued[0].ErrorType)
	assert.JSONEq(t, `{"id":"inv-bad"}`, string(queued[0].Payload))
}

func TestRunnerDeadLettersUpsertFailure(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	// A record whose body is missing fails in the matcher, not the fetch.
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {{Records: []domain.SourceRecord{{
				EntityType: domain.EntityInvoices,
				ExternalID: "inv-1",
				ModifiedAt: time.Now(),
			}}}},
		},
	}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 1, log.RecordsFailed)

	queued, err := f.queue.List(ctx, domain.SourceSplynx, false, 10)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, "upsert", queued[0].ErrorType)
}

func TestRunnerWatermarkWaitsForDeadLetteredRecord(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	good := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	bad := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)

	page := invoicePage(good, "inv-good")
	// Missing body: the matcher rejects it and the record is dead-lettered.
	page.Records = append(page.Records, domain.SourceRecord{
		EntityType: domain.EntityInvoices,
		ExternalID: "inv-broken",
		ModifiedAt: bad,
	})
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {page},
		},
	}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 1, log.RecordsCreated)
	assert.Equal(t, 1, log.RecordsFailed)

	cursor, err := f.cursors.Get(ctx, domain.SourceSplynx, domain.EntityInvoices)
	require.NoError(t, err)
	assert.True(t, cursor.LastModifiedAt.Before(bad), "watermark stays behind the failed record")
	assert.True(t, cursor.LastModifiedAt.After(good), "applied records stay behind the watermark")

	// The source returns the same records once the broken one is repaired.
	// It is still ahead of the watermark, so it is fetched and applied.
	fixed := invoicePage(good, "inv-good")
	fixed.Records = append(fixed.Records, invoicePage(bad, "inv-broken").Records...)
	conn.pages[domain.EntityInvoices] = []driven.RecordPage{fixed}

	log, err = f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 1, log.RecordsCreated)
	assert.Equal(t, 0, log.RecordsFailed)

	_, invoices, _, _ := f.records.Counts()
	assert.Equal(t, 2, invoices)

	cursor, err = f.cursors.Get(ctx, domain.SourceSplynx, domain.EntityInvoices)
	require.NoError(t, err)
	assert.True(t, cursor.LastModifiedAt.Equal(bad), "watermark advances once the record applies")
}

func TestRunnerWatermarkWaitsForMappingFailure(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	failedAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	laterAt := time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)

	page := invoicePage(laterAt, "inv-late")
	page.Records = append(page.Records, domain.SourceRecord{
		EntityType: domain.EntityInvoices,
		ExternalID: "inv-bad",
		ModifiedAt: failedAt,
		Payload:    []byte(`{"id":"inv-bad"}`),
		MapErr:     domain.ErrRecordMapping,
	})
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {page},
		},
	}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 1, log.RecordsCreated)
	assert.Equal(t, 1, log.RecordsFailed)

	// A later record applied, but the watermark still waits below the
	// earliest failure so the failed record comes back next run.
	cursor, err := f.cursors.Get(ctx, domain.SourceSplynx, domain.EntityInvoices)
	require.NoError(t, err)
	assert.True(t, cursor.LastModifiedAt.Before(failedAt))
}

func TestRunnerWatermarkHeldByTimestamplessFailure(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	page := invoicePage(modified, "inv-ok")
	// A record the source could not even timestamp: the watermark must
	// not move at all.
	page.Records = append(page.Records, domain.SourceRecord{
		EntityType: domain.EntityInvoices,
		ExternalID: "inv-undated",
		Payload:    []byte(`{"id":"inv-undated"}`),
		MapErr:     domain.ErrRecordMapping,
	})
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {page},
		},
	}
	_, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)

	cursor, err := f.cursors.Get(ctx, domain.SourceSplynx, domain.EntityInvoices)
	require.NoError(t, err)
	assert.True(t, cursor.LastModifiedAt.IsZero())
}

func TestRunnerPageCapStoresContinuationToken(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.cfg.IncrementalPageCap = 1
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	page := invoicePage(modified, "inv-1")
	page.HasMore = true
	page.NextCursor = "after-inv-1"

	conn := &syncMockConnector{
		source:   domain.SourceChatwoot,
		entities: []domain.EntityType{domain.EntityInvoices},
		caps:     driven.SourceCapabilities{UsesContinuationToken: true},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {page},
		},
	}
	_, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)

	cursor, err := f.cursors.Get(ctx, domain.SourceChatwoot, domain.EntityInvoices)
	require.NoError(t, err)
	assert.Equal(t, "after-inv-1", cursor.CursorValue)

	// The next run resumes from the stored token.
	_, err = f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, "after-inv-1", conn.lastReq.Cursor)
}

func TestRunnerDrainedCollectionClearsContinuationToken(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.cfg.IncrementalPageCap = 1
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	capped := invoicePage(modified, "inv-1")
	capped.HasMore = true
	capped.NextCursor = "after-inv-1"

	conn := &syncMockConnector{
		source:   domain.SourceChatwoot,
		entities: []domain.EntityType{domain.EntityInvoices},
		caps:     driven.SourceCapabilities{UsesContinuationToken: true},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {capped},
		},
	}
	_, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)

	cursor, err := f.cursors.Get(ctx, domain.SourceChatwoot, domain.EntityInvoices)
	require.NoError(t, err)
	require.Equal(t, "after-inv-1", cursor.CursorValue)

	// The next run resumes from the token and drains the collection, so
	// the stored token must be dropped, not left at its stale value.
	f.runner.cfg.IncrementalPageCap = 20
	conn.pages[domain.EntityInvoices] = []driven.RecordPage{invoicePage(modified.Add(time.Hour), "inv-2")}
	_, err = f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, "after-inv-1", conn.lastReq.Cursor)

	cursor, err = f.cursors.Get(ctx, domain.SourceChatwoot, domain.EntityInvoices)
	require.NoError(t, err)
	assert.Empty(t, cursor.CursorValue)

	// With no token stored the run starts from the first page again.
	_, err = f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Empty(t, conn.lastReq.Cursor)
}

func TestRunnerFlushesOnBatchBoundaryAndPageEnd(t *testing.T) {
	f := newRunnerFixture(t)
	f.runner.cfg.BatchSize = 2
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			domain.EntityInvoices: {invoicePage(modified, "inv-1", "inv-2", "inv-3", "inv-4", "inv-5")},
		},
	}
	log, err := f.runner.SyncEntity(ctx, conn, domain.EntityInvoices, false)
	require.NoError(t, err)
	assert.Equal(t, 5, log.RecordsCreated)

	// Two batch-boundary flushes plus the end-of-page flush.
	assert.Equal(t, 3, f.records.Flushes())
}

func TestRunnerSyncAllContinuesAfterEntityFailure(t *testing.T) {
	f := newRunnerFixture(t)
	ctx := context.Background()

	modified := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	conn := &syncMockConnector{
		source:   domain.SourceSplynx,
		entities: []domain.EntityType{domain.EntityCustomers, domain.EntityInvoices},
		pages: map[domain.EntityType][]driven.RecordPage{
			// Customers page is empty; invoices succeed.
			domain.EntityInvoices: {invoicePage(modified, "inv-1")},
		},
	}
	logs, err := f.runner.SyncAll(ctx, conn, false)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, domain.SyncCompleted, logs[0].Status)
	assert.Equal(t, domain.SyncCompleted, logs[1].Status)
}
