package domain

// RunOutcome is one adapter's result within an orchestrator run.
type RunOutcome struct {
	Source SourceName

	// Skipped is true when the run lock was held elsewhere; this is
	// reported as success-with-skip, not a failure.
	Skipped bool

	// Logs holds the finalized run record for each entity type attempted.
	Logs []*SyncLog

	// Err is the adapter-level error, if the whole adapter failed to run.
	Err error
}

// Failed reports whether the adapter outcome counts against the overall
// verdict. Skipped runs do not.
func (o *RunOutcome) Failed() bool {
	if o.Skipped {
		return false
	}
	if o.Err != nil {
		return true
	}
	for _, l := range o.Logs {
		if l.Status == SyncFailed {
			return true
		}
	}
	return false
}

// RunVerdict is the aggregate result of an orchestrator run.
type RunVerdict string

const (
	VerdictSuccess RunVerdict = "success"
	VerdictPartial RunVerdict = "partial"
	VerdictFailed  RunVerdict = "failed"
)

// Verdict aggregates per-adapter outcomes into an overall verdict: failed
// when every adapter failed, partial when some did, success otherwise.
func Verdict(outcomes []RunOutcome) RunVerdict {
	if len(outcomes) == 0 {
		return VerdictSuccess
	}
	failed := 0
	for i := range outcomes {
		if outcomes[i].Failed() {
			failed++
		}
	}
	switch failed {
	case 0:
		return VerdictSuccess
	case len(outcomes):
		return VerdictFailed
	default:
		return VerdictPartial
	}
}
