// Package services implements the driving port interfaces.
// Services contain the core sync logic: orchestration, the per-entity
// run loop, cross-source matching, circuit breaking and dead-letter
// retry. They orchestrate calls to driven ports (adapters).
package services
