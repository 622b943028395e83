package domain

import "time"

// SyncCursor is the stored position marking how far an incremental sync has
// progressed for one (source, entity type) pair. Exactly one row exists per
// pair, created lazily on first sync and mutated only by the owning adapter
// at the end of a successful run.
type SyncCursor struct {
	// Source and EntityType form the unique key.
	Source     SourceName
	EntityType EntityType

	// LastSyncTimestamp is the instant the owning adapter last completed.
	LastSyncTimestamp time.Time

	// LastModifiedAt is the maximum upstream "modified" timestamp observed.
	// Used for client-side modified-since filtering when the upstream API
	// lacks a native filter.
	LastModifiedAt time.Time

	// LastID is the last processed external id, for id-ordered pagination.
	LastID string

	// LastPage is the last completed page number, for page-number APIs.
	LastPage int

	// CursorValue is an opaque serialized continuation token.
	CursorValue string

	// RecordsSynced counts records applied across all runs. Monotonic.
	RecordsSynced int64

	// LastSyncAt is when the cursor row was last written.
	LastSyncAt time.Time
}

// Reset clears all positional fields without deleting the row, so the next
// fetch starts from empty. Used before a forced full sync.
func (c *SyncCursor) Reset() {
	c.LastSyncTimestamp = time.Time{}
	c.LastModifiedAt = time.Time{}
	c.LastID = ""
	c.LastPage = 0
	c.CursorValue = ""
}

// CursorUpdate carries the fields an adapter advances at the end of a run.
// Only non-zero fields are merged into the stored cursor.
type CursorUpdate struct {
	Timestamp   time.Time
	ModifiedAt  time.Time
	LastID      string
	LastPage    int
	CursorValue string

	// ClearCursorValue drops the stored continuation token. Set when a
	// token-paginated run drains the collection, so the next run starts
	// from the first page instead of resuming at a stale mid-collection
	// token.
	ClearCursorValue bool
}

// Apply merges the supplied fields into the cursor and bumps the
// bookkeeping columns. now is the write time.
func (c *SyncCursor) Apply(u CursorUpdate, recordsDelta int64, now time.Time) {
	if !u.Timestamp.IsZero() {
		c.LastSyncTimestamp = u.Timestamp
	}
	if !u.ModifiedAt.IsZero() {
		c.LastModifiedAt = u.ModifiedAt
	}
	if u.LastID != "" {
		c.LastID = u.LastID
	}
	if u.LastPage != 0 {
		c.LastPage = u.LastPage
	}
	switch {
	case u.ClearCursorValue:
		c.CursorValue = ""
	case u.CursorValue != "":
		c.CursorValue = u.CursorValue
	}
	c.RecordsSynced += recordsDelta
	c.LastSyncAt = now
}
