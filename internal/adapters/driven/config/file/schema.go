package file

import (
	"time"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

// duration parses TOML duration strings ("30s", "15m") via
// time.ParseDuration.
type duration time.Duration

func (d *duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

// fileConfig mirrors the TOML schema. Everything is optional; absent
// fields keep the domain defaults.
type fileConfig struct {
	DataDir   string                  `toml:"data_dir"`
	Sources   map[string]sourceTable  `toml:"sources"`
	Sync      syncTable               `toml:"sync"`
	Breaker   breakerTable            `toml:"breaker"`
	Scheduler schedulerTable          `toml:"scheduler"`
	Cache     cacheTable              `toml:"cache"`
}

type sourceTable struct {
	BaseURL           string   `toml:"base_url"`
	APIKey            string   `toml:"api_key"`
	APISecret         string   `toml:"api_secret"`
	AccountID         string   `toml:"account_id"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           duration `toml:"timeout"`
}

type syncTable struct {
	PageSize           int      `toml:"page_size"`
	IncrementalPageCap int      `toml:"incremental_page_cap"`
	FullPageCap        int      `toml:"full_page_cap"`
	BatchSize          int      `toml:"batch_size"`
	LockTimeout        duration `toml:"lock_timeout"`
	FullLockTimeout    duration `toml:"full_lock_timeout"`
}

type breakerTable struct {
	FailMax      int      `toml:"fail_max"`
	ResetTimeout duration `toml:"reset_timeout"`
}

type schedulerTable struct {
	Enabled *bool                `toml:"enabled"`
	Tasks   map[string]taskTable `toml:"tasks"`
}

type taskTable struct {
	Enabled  *bool    `toml:"enabled"`
	Interval duration `toml:"interval"`
}

type cacheTable struct {
	PurgeURL string   `toml:"purge_url"`
	Timeout  duration `toml:"timeout"`
}

// apply overlays the file's values onto cfg. Zero values never override a
// default; booleans use pointers so an explicit false still lands.
func (fc *fileConfig) apply(cfg *domain.Config) {
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}

	for name, st := range fc.Sources {
		source := domain.SourceName(name)
		if !source.Valid() {
			continue
		}
		cfg.Sources[source] = domain.SourceConfig{
			BaseURL:           st.BaseURL,
			APIKey:            st.APIKey,
			APISecret:         st.APISecret,
			AccountID:         st.AccountID,
			RequestsPerSecond: st.RequestsPerSecond,
			Timeout:           time.Duration(st.Timeout),
		}
	}

	if fc.Sync.PageSize > 0 {
		cfg.Sync.PageSize = fc.Sync.PageSize
	}
	if fc.Sync.IncrementalPageCap > 0 {
		cfg.Sync.IncrementalPageCap = fc.Sync.IncrementalPageCap
	}
	if fc.Sync.FullPageCap > 0 {
		cfg.Sync.FullPageCap = fc.Sync.FullPageCap
	}
	if fc.Sync.BatchSize > 0 {
		cfg.Sync.BatchSize = fc.Sync.BatchSize
	}
	if fc.Sync.LockTimeout > 0 {
		cfg.Sync.LockTimeout = time.Duration(fc.Sync.LockTimeout)
	}
	if fc.Sync.FullLockTimeout > 0 {
		cfg.Sync.FullLockTimeout = time.Duration(fc.Sync.FullLockTimeout)
	}

	if fc.Breaker.FailMax > 0 {
		cfg.Breaker.FailMax = fc.Breaker.FailMax
	}
	if fc.Breaker.ResetTimeout > 0 {
		cfg.Breaker.ResetTimeout = time.Duration(fc.Breaker.ResetTimeout)
	}

	if fc.Scheduler.Enabled != nil {
		cfg.Scheduler.Enabled = *fc.Scheduler.Enabled
	}
	for id, tt := range fc.Scheduler.Tasks {
		tc, ok := cfg.Scheduler.TaskConfigs[id]
		if !ok {
			continue
		}
		if tt.Enabled != nil {
			tc.Enabled = *tt.Enabled
		}
		if tt.Interval > 0 {
			tc.Interval = time.Duration(tt.Interval)
		}
		cfg.Scheduler.TaskConfigs[id] = tc
	}

	if fc.Cache.PurgeURL != "" {
		cfg.Cache.PurgeURL = fc.Cache.PurgeURL
	}
	if fc.Cache.Timeout > 0 {
		cfg.Cache.Timeout = time.Duration(fc.Cache.Timeout)
	}
}
