package domain

// SourceName identifies one of the three external systems records are
// pulled from.
type SourceName string

// The configured sources, in dependency order: Splynx owns the master
// identity for customers, invoices and payments; ERPNext enriches them;
// Chatwoot contributes contact details and support tickets.
const (
	SourceSplynx   SourceName = "splynx"
	SourceERPNext  SourceName = "erpnext"
	SourceChatwoot SourceName = "chatwoot"
)

// SourceOrder is the fixed order in which adapters run. A later source may
// rely on canonical ids created by an earlier one.
var SourceOrder = []SourceName{SourceSplynx, SourceERPNext, SourceChatwoot}

// Valid reports whether the source name is one of the configured systems.
func (s SourceName) Valid() bool {
	switch s {
	case SourceSplynx, SourceERPNext, SourceChatwoot:
		return true
	}
	return false
}

// LockName returns the named lock held for the duration of a full-source
// run, e.g. "sync_splynx_all".
func (s SourceName) LockName() string {
	return "sync_" + string(s) + "_all"
}

// EntityType is a category of record within a source, synced independently
// with its own cursor.
type EntityType string

const (
	EntityCustomers EntityType = "customers"
	EntityInvoices  EntityType = "invoices"
	EntityPayments  EntityType = "payments"
	EntityTickets   EntityType = "tickets"
)

// SyncType distinguishes a full re-sync from an incremental one.
type SyncType string

const (
	SyncFull        SyncType = "full"
	SyncIncremental SyncType = "incremental"
)
