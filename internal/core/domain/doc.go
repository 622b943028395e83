// Package domain defines the core business entities for recsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies beyond uuid generation and defines the
// fundamental types:
//
//   - SyncCursor: Per (source, entity type) incremental watermark
//   - FailedSyncRecord: A dead-letter queue entry with retry bookkeeping
//   - SyncLog: The lifecycle record of one adapter invocation
//   - Customer, Invoice, Payment, Ticket: Canonical cross-source records
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. All other packages depend on
// domain, never the reverse.
package domain
