package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/logger"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// reloadDebounce coalesces the event bursts editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// ConfigStore loads the TOML configuration file, expanding ${VAR}
// references from the environment. A .env file next to the config file is
// loaded first, so credentials never have to live in the config itself.
type ConfigStore struct {
	filePath string
}

// NewConfigStore creates a store for the given config file path. Empty
// means the default ~/.recsync/config.toml.
func NewConfigStore(filePath string) (*ConfigStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		filePath = filepath.Join(home, ".recsync", "config.toml")
	}
	return &ConfigStore{filePath: filePath}, nil
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load implements driven.ConfigStore. A missing config file is not an
// error; the defaults stand.
func (s *ConfigStore) Load(_ context.Context) (*domain.Config, error) {
	// Secrets from the sidecar .env enter the process environment before
	// expansion. Absence is fine.
	envPath := filepath.Join(filepath.Dir(s.filePath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", envPath, err)
	}

	cfg := domain.DefaultConfig()

	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &fc); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidInput, s.filePath, err)
	}

	fc.apply(&cfg)
	return &cfg, nil
}

// Watch implements driven.ConfigStore via fsnotify on the config file's
// directory (watching the file itself breaks under the rename-on-save
// dance most editors do). Reloads are debounced; a reload that fails to
// parse is logged and skipped, keeping the last good config live.
func (s *ConfigStore) Watch(ctx context.Context) (<-chan domain.Config, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.filePath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir: %w", err)
	}

	out := make(chan domain.Config, 1)
	go func() {
		defer watcher.Close()
		defer close(out)

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != s.filePath {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				pending = time.After(reloadDebounce)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher: %v", err)

			case <-pending:
				pending = nil
				cfg, err := s.Load(ctx)
				if err != nil {
					logger.Error("config reload skipped: %v", err)
					continue
				}
				select {
				case out <- *cfg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
