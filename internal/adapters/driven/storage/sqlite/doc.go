// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - RecordStore: canonical customer/invoice/payment/ticket persistence
//   - CursorStore: incremental sync watermark persistence
//   - FailedRecordStore: dead-letter queue persistence
//   - SyncLogStore: run record persistence
//   - LockManager: named run locks with TTL takeover
//   - SchedulerStore: background task bookkeeping
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.recsync/data/recsync.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
