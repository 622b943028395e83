// Package driving defines the interfaces through which the outside world
// drives the sync core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI and the scheduler depend on these interfaces; core services
// implement them.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or service package
package driving
