package domain

import "time"

// Default retry policy for dead-letter queue entries.
const (
	DefaultMaxRetries = 3

	// RetryBaseDelay is the backoff for the first retry; each subsequent
	// retry doubles it, capped at RetryMaxDelay.
	RetryBaseDelay = 5 * time.Minute
	RetryMaxDelay  = 60 * time.Minute
)

// FailedSyncRecord is a dead-letter queue entry: one upstream record that
// could not be applied, held durably for bounded automatic retry and
// eventual manual resolution. Entries are never hard-deleted; the queue is
// also the audit trail.
type FailedSyncRecord struct {
	ID         int64
	Source     SourceName
	EntityType EntityType

	// ExternalID is the record's native id in the source system.
	ExternalID string

	// Payload is the serialized original upstream record.
	Payload []byte

	ErrorMessage string
	ErrorType    string

	RetryCount int
	MaxRetries int

	LastRetryAt time.Time
	NextRetryAt time.Time

	// IsResolved marks the entry terminal, either because retries were
	// exhausted or an operator resolved it. Resolved entries are never
	// retried again.
	IsResolved      bool
	ResolvedAt      time.Time
	ResolutionNotes string

	CreatedAt time.Time
}

// RetryDelay returns the backoff before the k-th retry (1-based):
// min(5 * 2^(k-1), 60) minutes.
func RetryDelay(k int) time.Duration {
	if k < 1 {
		k = 1
	}
	d := RetryBaseDelay << (k - 1)
	if d > RetryMaxDelay || d <= 0 {
		return RetryMaxDelay
	}
	return d
}

// Retryable reports whether the entry is due for another attempt at now.
func (r *FailedSyncRecord) Retryable(now time.Time) bool {
	return !r.IsResolved && r.RetryCount < r.MaxRetries && !r.NextRetryAt.After(now)
}

// MarkRetry records one retry attempt: bumps the count, schedules the next
// attempt with exponential backoff, and marks the entry terminal once the
// retry budget is exhausted.
func (r *FailedSyncRecord) MarkRetry(now time.Time) {
	r.RetryCount++
	r.LastRetryAt = now
	r.NextRetryAt = now.Add(RetryDelay(r.RetryCount))
	if r.RetryCount >= r.MaxRetries {
		r.IsResolved = true
		r.ResolvedAt = now
		r.ResolutionNotes = "retries exhausted"
	}
}

// MarkResolved annotates manual remediation by an operator.
func (r *FailedSyncRecord) MarkResolved(notes string, now time.Time) {
	r.IsResolved = true
	r.ResolvedAt = now
	r.ResolutionNotes = notes
}
