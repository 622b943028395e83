// Package cache implements the derived-aggregate purge signal as an HTTP
// POST to the reporting service. The orchestrator fires it after every
// run that synced at least one source; failures are logged there and
// never fail the run, so the adapter keeps its timeout short instead of
// retrying.
package cache

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
)

// DefaultTimeout bounds the purge call when the config does not set one.
const DefaultTimeout = 5 * time.Second

// Ensure Invalidator implements the interface.
var _ driven.CacheInvalidator = (*Invalidator)(nil)

// Invalidator POSTs to the reporting service's purge endpoint.
type Invalidator struct {
	url  string
	http *http.Client
}

// NewInvalidator creates the purge adapter. An empty PurgeURL disables
// the signal; PurgeAggregates becomes a no-op.
func NewInvalidator(cfg domain.CacheConfig) *Invalidator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invalidator{
		url:  cfg.PurgeURL,
		http: &http.Client{Timeout: timeout},
	}
}

// PurgeAggregates implements driven.CacheInvalidator.
func (i *Invalidator) PurgeAggregates(ctx context.Context) error {
	if i.url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.url, nil)
	if err != nil {
		return fmt.Errorf("build purge request: %w", err)
	}

	resp, err := i.http.Do(req)
	if err != nil {
		return fmt.Errorf("purge aggregates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("purge aggregates: status %d", resp.StatusCode)
	}
	return nil
}
