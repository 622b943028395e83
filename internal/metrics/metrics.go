// Package metrics exposes Prometheus collectors for sync outcomes. The
// daemon serves them on /metrics when a metrics address is configured;
// one-shot CLI runs still record them, they just never get scraped.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RecordsFetched counts upstream records fetched per source and entity.
	RecordsFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recsync_records_fetched_total",
		Help: "Upstream records fetched",
	}, []string{"source", "entity"})

	// RecordsCreated counts canonical rows created.
	RecordsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recsync_records_created_total",
		Help: "Canonical records created",
	}, []string{"source", "entity"})

	// RecordsUpdated counts canonical rows updated.
	RecordsUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recsync_records_updated_total",
		Help: "Canonical records updated",
	}, []string{"source", "entity"})

	// RecordsFailed counts records routed to the dead-letter queue.
	RecordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recsync_records_failed_total",
		Help: "Records routed to the dead-letter queue",
	}, []string{"source", "entity"})

	// SyncDuration observes per-entity run durations.
	SyncDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recsync_sync_duration_seconds",
		Help:    "Duration of per-entity sync runs",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"source", "entity"})

	// BreakerState reports each source's breaker state
	// (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "recsync_breaker_state",
		Help: "Circuit breaker state per source (0 closed, 1 half-open, 2 open)",
	}, []string{"source"})
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
