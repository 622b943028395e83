package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExternalIDs holds a canonical row's native id in each source system.
// A row may be populated/enriched by more than one source; an empty string
// means the source has not claimed the row yet.
type ExternalIDs struct {
	Splynx   string
	ERPNext  string
	Chatwoot string
}

// Get returns the native id for a source.
func (e ExternalIDs) Get(s SourceName) string {
	switch s {
	case SourceSplynx:
		return e.Splynx
	case SourceERPNext:
		return e.ERPNext
	case SourceChatwoot:
		return e.Chatwoot
	}
	return ""
}

// Set assigns the native id for a source.
func (e *ExternalIDs) Set(s SourceName, id string) {
	switch s {
	case SourceSplynx:
		e.Splynx = id
	case SourceERPNext:
		e.ERPNext = id
	case SourceChatwoot:
		e.Chatwoot = id
	}
}

// NewID generates a canonical row id.
func NewID() string {
	return uuid.NewString()
}

// Customer is the canonical, source-agnostic customer row.
type Customer struct {
	ID      string
	Name    string
	Email   string
	Phone   string
	Address string

	ExternalIDs ExternalIDs

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Invoice is the canonical invoice row. Amount is in minor currency units
// (cents) so equality is exact during soft matching.
type Invoice struct {
	ID         string
	CustomerID string
	Number     string
	Amount     int64
	Currency   string
	IssueDate  time.Time
	DueDate    time.Time
	Status     string

	ExternalIDs ExternalIDs

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is the canonical payment row. Amount is in minor currency units.
type Payment struct {
	ID         string
	InvoiceID  string
	CustomerID string
	Amount     int64
	Currency   string
	PaidAt     time.Time
	Method     string

	ExternalIDs ExternalIDs

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Ticket is the canonical support ticket row. Tickets are owned by the
// support system only but link to a cross-source customer.
type Ticket struct {
	ID         string
	CustomerID string
	Subject    string
	Status     string
	Priority   string

	ExternalIDs ExternalIDs

	OpenedAt       time.Time
	LastActivityAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CrossRef is an explicit cross-reference carried by an upstream record,
// pointing at another source's native id for the same real-world entity.
type CrossRef struct {
	Source     SourceName
	ExternalID string
}

// SourceRecord is one upstream record mapped to canonical shape by a
// source adapter. Exactly one of the entity pointers is set, matching
// EntityType. MapErr is set instead when the upstream record could not be
// translated; such records go to the dead-letter queue and the page
// continues.
type SourceRecord struct {
	EntityType EntityType
	ExternalID string

	// ModifiedAt is the record's own upstream modification instant, used
	// for client-side modified-since filtering and watermark tracking.
	ModifiedAt time.Time

	// Payload is the serialized original upstream record, kept for the
	// dead-letter queue.
	Payload []byte

	// CrossRef, when non-nil, is the record's hint at another source's
	// native id for the same entity.
	CrossRef *CrossRef

	Customer *Customer
	Invoice  *Invoice
	Payment  *Payment
	Ticket   *Ticket

	MapErr error
}
