package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

func writeConfig(t *testing.T, dir, content string) *ConfigStore {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	store, err := NewConfigStore(path)
	require.NoError(t, err)
	return store
}

func TestConfigStore_Load(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		store, err := NewConfigStore(filepath.Join(t.TempDir(), "config.toml"))
		require.NoError(t, err)

		cfg, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 100, cfg.Sync.PageSize)
		assert.Equal(t, 5, cfg.Breaker.FailMax)
		assert.True(t, cfg.Scheduler.Enabled)
	})

	t.Run("file values override defaults", func(t *testing.T) {
		store := writeConfig(t, t.TempDir(), `
data_dir = "/var/lib/recsync"

[sources.splynx]
base_url = "https://billing.example.com"
api_key = "key-1"
api_secret = "secret-1"
requests_per_second = 2.5
timeout = "45s"

[sync]
page_size = 250
lock_timeout = "20m"

[breaker]
fail_max = 3
reset_timeout = "90s"

[scheduler.tasks.sync-splynx]
interval = "5m"

[scheduler.tasks.dlq-retry]
enabled = false

[cache]
purge_url = "https://reports.example.com/internal/cache/purge"
`)

		cfg, err := store.Load(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "/var/lib/recsync", cfg.DataDir)

		splynx := cfg.Sources[domain.SourceSplynx]
		assert.Equal(t, "https://billing.example.com", splynx.BaseURL)
		assert.Equal(t, 2.5, splynx.RequestsPerSecond)
		assert.Equal(t, 45*time.Second, splynx.Timeout)

		assert.Equal(t, 250, cfg.Sync.PageSize)
		assert.Equal(t, 20*time.Minute, cfg.Sync.LockTimeout)
		assert.Equal(t, 500, cfg.Sync.BatchSize, "untouched fields keep defaults")

		assert.Equal(t, 3, cfg.Breaker.FailMax)
		assert.Equal(t, 90*time.Second, cfg.Breaker.ResetTimeout)

		assert.Equal(t, 5*time.Minute, cfg.Scheduler.TaskConfigs[domain.TaskIDSyncSplynx].Interval)
		assert.False(t, cfg.Scheduler.TaskConfigs[domain.TaskIDQueueRetry].Enabled, "explicit false lands")
		assert.True(t, cfg.Scheduler.TaskConfigs[domain.TaskIDSyncERPNext].Enabled)

		assert.Equal(t, "https://reports.example.com/internal/cache/purge", cfg.Cache.PurgeURL)
	})

	t.Run("expands environment references", func(t *testing.T) {
		t.Setenv("RECSYNC_TEST_SECRET", "hunter2")
		store := writeConfig(t, t.TempDir(), `
[sources.erpnext]
api_key = "key"
api_secret = "${RECSYNC_TEST_SECRET}"
`)

		cfg, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "hunter2", cfg.Sources[domain.SourceERPNext].APISecret)
	})

	t.Run("loads sidecar env file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RECSYNC_SIDECAR_TOKEN=from-env-file\n"), 0o600))
		store := writeConfig(t, dir, `
[sources.chatwoot]
api_key = "${RECSYNC_SIDECAR_TOKEN}"
account_id = "7"
`)

		cfg, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "from-env-file", cfg.Sources[domain.SourceChatwoot].APIKey)
	})

	t.Run("unknown source tables are ignored", func(t *testing.T) {
		store := writeConfig(t, t.TempDir(), `
[sources.stripe]
api_key = "nope"
`)

		cfg, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, cfg.Sources)
	})

	t.Run("invalid toml is an input error", func(t *testing.T) {
		store := writeConfig(t, t.TempDir(), `this is not toml = = =`)

		_, err := store.Load(context.Background())
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestConfigStore_Watch(t *testing.T) {
	dir := t.TempDir()
	store := writeConfig(t, dir, "[sync]\npage_size = 100\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := store.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[sync]\npage_size = 42\n"), 0o600))

	select {
	case cfg := <-updates:
		assert.Equal(t, 42, cfg.Sync.PageSize)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, open := <-updates:
			if !open {
				return // closed on cancel
			}
		case <-deadline:
			t.Fatal("channel not closed")
		}
	}
}
