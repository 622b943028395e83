package domain

import "time"

// Config is the application configuration, loaded from the TOML config
// file with credentials expanded from the environment.
type Config struct {
	// DataDir is where the SQLite store lives. Empty means the default
	// (~/.recsync/data).
	DataDir string

	Sources   map[SourceName]SourceConfig
	Sync      SyncConfig
	Breaker   BreakerConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
}

// SourceConfig holds one upstream system's connection settings.
type SourceConfig struct {
	// BaseURL is the root of the upstream REST API.
	BaseURL string

	// APIKey and APISecret carry the source's credentials. Splynx uses
	// both (signed nonce exchange); ERPNext uses key:secret token auth;
	// Chatwoot uses APIKey as its access token and AccountID for routing.
	APIKey    string
	APISecret string
	AccountID string

	// RequestsPerSecond throttles outbound calls. Zero disables the
	// client-side limiter.
	RequestsPerSecond float64

	// Timeout bounds a single HTTP request.
	Timeout time.Duration
}

// SyncConfig bounds the work one run may do.
type SyncConfig struct {
	// PageSize is how many records one upstream page requests.
	PageSize int

	// IncrementalPageCap bounds pages per entity on incremental runs.
	// FullPageCap applies to forced full syncs and is larger.
	IncrementalPageCap int
	FullPageCap        int

	// BatchSize is how many upserts accumulate before a flush.
	BatchSize int

	// LockTimeout is how long a run lock lives before it may be taken
	// over. FullLockTimeout applies to full syncs.
	LockTimeout     time.Duration
	FullLockTimeout time.Duration
}

// BreakerConfig configures per-source circuit breakers.
type BreakerConfig struct {
	// FailMax is consecutive failures before the breaker opens.
	FailMax int

	// ResetTimeout is how long an open breaker waits before permitting a
	// half-open probe.
	ResetTimeout time.Duration
}

// CacheConfig configures the derived-aggregate purge signal emitted after
// a successful run.
type CacheConfig struct {
	// PurgeURL is the reporting service endpoint to POST to. Empty
	// disables the signal.
	PurgeURL string

	Timeout time.Duration
}

// DefaultConfig returns the built-in defaults; the config file overrides
// individual fields.
func DefaultConfig() Config {
	return Config{
		Sources: map[SourceName]SourceConfig{},
		Sync: SyncConfig{
			PageSize:           100,
			IncrementalPageCap: 20,
			FullPageCap:        500,
			BatchSize:          500,
			LockTimeout:        15 * time.Minute,
			FullLockTimeout:    2 * time.Hour,
		},
		Breaker: BreakerConfig{
			FailMax:      5,
			ResetTimeout: 60 * time.Second,
		},
		Scheduler: DefaultSchedulerConfig(),
		Cache: CacheConfig{
			Timeout: 5 * time.Second,
		},
	}
}
