package domain

import "errors"

// Domain errors represent business logic failures.
// Callers branch on these with errors.Is rather than matching a broad
// exception type; each kind has a distinct propagation rule (see the
// service layer).
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConnection indicates an auth or network failure reaching a source.
	// Trips the circuit breaker and aborts the current entity sync.
	ErrConnection = errors.New("source connection failed")

	// ErrBreakerOpen indicates the circuit breaker refused the call before
	// any network attempt. Distinct from ErrConnection so callers can tell
	// "source is down" from "we are deliberately not trying".
	ErrBreakerOpen = errors.New("circuit breaker open")

	// ErrRecordMapping indicates a single upstream record could not be
	// translated to canonical shape. The record goes to the dead-letter
	// queue; the page continues.
	ErrRecordMapping = errors.New("record mapping failed")

	// ErrLinkageConflict indicates the matcher found two candidate rows for
	// one upstream record and kept the pre-existing one. Non-fatal; logged.
	ErrLinkageConflict = errors.New("cross-source linkage conflict")

	// ErrLockHeld indicates another run of the same source is in progress.
	// The run is skipped and reported as such, not failed.
	ErrLockHeld = errors.New("sync lock held")

	// ErrRateLimited indicates the upstream API rate limit was exceeded and
	// no alternate endpoint could absorb the call.
	ErrRateLimited = errors.New("rate limited")
)
