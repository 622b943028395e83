// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: Fetches and maps records from one upstream source
//   - CursorStore: Incremental watermark persistence
//   - FailedRecordStore: Dead-letter queue persistence
//   - SyncLogStore: Run record persistence
//   - RecordStore: Canonical business record persistence
//   - LockManager: Named run locks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
//   - CacheInvalidator: Derived-aggregate purge signal; may be nil, in
//     which case no signal is emitted
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
