package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSyncLogLifecycle(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l := NewSyncLog(SourceSplynx, EntityInvoices, SyncIncremental, start)

	assert.Equal(t, SyncStarted, l.Status)
	assert.Equal(t, start, l.StartedAt)

	l.RecordsFetched = 40
	l.RecordsCreated = 10
	l.RecordsUpdated = 30
	l.Complete(l.Outcome(), start.Add(90*time.Second))

	assert.Equal(t, SyncCompleted, l.Status)
	assert.InDelta(t, 90.0, l.DurationSeconds, 0.001)
}

func TestSyncLogOutcomePartial(t *testing.T) {
	l := NewSyncLog(SourceERPNext, EntityPayments, SyncFull, time.Now())
	l.RecordsFetched = 5
	l.RecordsFailed = 2

	assert.Equal(t, SyncPartial, l.Outcome())
}

func TestSyncLogFail(t *testing.T) {
	start := time.Now().UTC()
	l := NewSyncLog(SourceChatwoot, EntityTickets, SyncIncremental, start)

	l.Fail("connection refused", "dial tcp: connect: connection refused", start.Add(time.Second))

	assert.Equal(t, SyncFailed, l.Status)
	assert.Equal(t, "connection refused", l.ErrorMessage)
	assert.InDelta(t, 1.0, l.DurationSeconds, 0.001)
}

func TestRunVerdict(t *testing.T) {
	ok := RunOutcome{Source: SourceSplynx}
	skipped := RunOutcome{Source: SourceERPNext, Skipped: true, Err: ErrLockHeld}
	failed := RunOutcome{Source: SourceChatwoot, Logs: []*SyncLog{{Status: SyncFailed}}}

	assert.Equal(t, VerdictSuccess, Verdict([]RunOutcome{ok, skipped}))
	assert.Equal(t, VerdictPartial, Verdict([]RunOutcome{ok, failed}))
	assert.Equal(t, VerdictFailed, Verdict([]RunOutcome{failed}))
	// A skipped run never counts against the verdict.
	assert.Equal(t, VerdictPartial, Verdict([]RunOutcome{ok, skipped, failed}))
}
