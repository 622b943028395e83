package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// Connector fetches records from one upstream source system. Each source
// (splynx, erpnext, chatwoot) implements this interface; the sync runner
// owns the loop around it (cursor resolution, breaker guard, dead-letter
// handling, watermark advancement).
type Connector interface {
	// Source returns the source this connector talks to.
	Source() domain.SourceName

	// EntityTypes returns the entity types this source provides, in sync
	// order. A later type may rely on an earlier type's canonical ids
	// (payments sync after customers and invoices).
	EntityTypes() []domain.EntityType

	// Capabilities describes how the source paginates and filters.
	Capabilities(entityType domain.EntityType) SourceCapabilities

	// TestConnection performs a cheap authenticated call (fetch one
	// record). Never panics; returns false on any failure.
	TestConnection(ctx context.Context) bool

	// FetchPage fetches and maps one page of records. Individual records
	// that fail to map are returned with MapErr set; the page itself only
	// errors on connection/auth failure.
	FetchPage(ctx context.Context, entityType domain.EntityType, req PageRequest) (*RecordPage, error)
}

// SourceCapabilities describes one entity type's upstream API shape.
type SourceCapabilities struct {
	// SupportsModifiedSince is true when the upstream applies the
	// modified-since filter server-side. When false the adapter still
	// fetches bounded pages and the runner discards stale records
	// client-side.
	SupportsModifiedSince bool

	// UsesContinuationToken is true for cursor-token pagination; false
	// means page-number pagination.
	UsesContinuationToken bool
}

// PageRequest addresses one page of an upstream collection.
type PageRequest struct {
	// Page is the 1-based page number (page-number APIs).
	Page int

	// Size is the requested page size.
	Size int

	// Cursor is the opaque continuation token from the previous page or
	// the stored cursor (token APIs).
	Cursor string

	// ModifiedSince requests only records changed after this instant.
	// Zero on full syncs and for first-ever runs.
	ModifiedSince time.Time
}

// RecordPage is one fetched page of mapped records.
type RecordPage struct {
	Records []domain.SourceRecord

	// HasMore is false when the upstream signalled the end of the
	// collection (short page or explicit marker).
	HasMore bool

	// NextCursor is the continuation token for the next page, for token
	// APIs.
	NextCursor string
}
