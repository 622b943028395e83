package domain

import "time"

// SyncStatus is the lifecycle state of one adapter invocation.
type SyncStatus string

const (
	SyncStarted   SyncStatus = "started"
	SyncCompleted SyncStatus = "completed"
	SyncFailed    SyncStatus = "failed"
	SyncPartial   SyncStatus = "partial"
)

// SyncLog records the lifecycle and outcome counters of one sync operation
// for a single (source, entity type) pair. Created at the start of every
// adapter call, counters incremented throughout, finalized exactly once by
// Complete or Fail.
type SyncLog struct {
	ID         int64
	Source     SourceName
	EntityType EntityType
	SyncType   SyncType
	Status     SyncStatus

	RecordsFetched int
	RecordsCreated int
	RecordsUpdated int
	RecordsFailed  int

	StartedAt       time.Time
	CompletedAt     time.Time
	DurationSeconds float64

	ErrorMessage string
	ErrorDetails string
}

// NewSyncLog opens a run record in the started state.
func NewSyncLog(source SourceName, entityType EntityType, syncType SyncType, now time.Time) *SyncLog {
	return &SyncLog{
		Source:     source,
		EntityType: entityType,
		SyncType:   syncType,
		Status:     SyncStarted,
		StartedAt:  now,
	}
}

// Complete finalizes the run with the given terminal status and computes
// its duration from StartedAt.
func (l *SyncLog) Complete(status SyncStatus, now time.Time) {
	l.Status = status
	l.CompletedAt = now
	l.DurationSeconds = now.Sub(l.StartedAt).Seconds()
}

// Fail finalizes the run as failed with an error message and optional
// details.
func (l *SyncLog) Fail(message, details string, now time.Time) {
	l.ErrorMessage = message
	l.ErrorDetails = details
	l.Complete(SyncFailed, now)
}

// Outcome derives the terminal status from the counters: completed when
// everything applied, partial when some records landed in the dead-letter
// queue.
func (l *SyncLog) Outcome() SyncStatus {
	if l.RecordsFailed > 0 {
		return SyncPartial
	}
	return SyncCompleted
}
