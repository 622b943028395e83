package driven

import "context"

// CacheInvalidator emits the "purge derived aggregates" signal consumed by
// reporting services after a successful run. Delivery failures are logged
// by the caller, never fatal to the sync run.
type CacheInvalidator interface {
	PurgeAggregates(ctx context.Context) error
}
