// Command recsync syncs customers, invoices, payments and tickets from
// Splynx, ERPNext and Chatwoot into one canonical store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/recsync/internal/adapters/driven/cache"
	configfile "github.com/custodia-labs/recsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recsync/internal/adapters/driving/cli"
	"github.com/custodia-labs/recsync/internal/connectors"
	"github.com/custodia-labs/recsync/internal/connectors/chatwoot"
	"github.com/custodia-labs/recsync/internal/connectors/erpnext"
	"github.com/custodia-labs/recsync/internal/connectors/splynx"
	"github.com/custodia-labs/recsync/internal/core/domain"
	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/core/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "recsync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := configfile.NewConfigStore(os.Getenv("RECSYNC_CONFIG"))
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cfg, err := configStore.Load(context.Background())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	resolver := connectors.NewStoreResolver(store.RecordStore())
	conns := buildConnectors(cfg, resolver)

	matcher := services.NewMatcher(store.RecordStore())
	breakers := services.NewBreakerRegistry(cfg.Breaker)
	runner := services.NewRunner(
		store.CursorStore(),
		store.SyncLogStore(),
		store.FailedRecordStore(),
		store.RecordStore(),
		matcher,
		breakers,
		cfg.Sync,
	)
	orchestrator := services.NewOrchestrator(
		runner,
		conns,
		store.LockManager(),
		cache.NewInvalidator(cfg.Cache),
		store.SyncLogStore(),
		cfg.Sync,
	)
	queue := services.NewQueueProcessor(store.FailedRecordStore())
	cursors := services.NewCursorAdmin(store.CursorStore())
	scheduler := services.NewScheduler(cfg.Scheduler, store.SchedulerStore(), orchestrator, queue)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Sync:      orchestrator,
		Queue:     queue,
		Cursors:   cursors,
		Scheduler: scheduler,
		Config:    configStore,
	})
	return cli.Execute()
}

// buildConnectors instantiates a connector for every source with a base
// URL configured. Unconfigured sources are simply absent; the orchestrator
// skips them.
func buildConnectors(cfg *domain.Config, resolver *connectors.StoreResolver) map[domain.SourceName]driven.Connector {
	conns := make(map[domain.SourceName]driven.Connector)
	if sc, ok := cfg.Sources[domain.SourceSplynx]; ok && sc.BaseURL != "" {
		conns[domain.SourceSplynx] = splynx.New(sc, resolver)
	}
	if sc, ok := cfg.Sources[domain.SourceERPNext]; ok && sc.BaseURL != "" {
		conns[domain.SourceERPNext] = erpnext.New(sc, resolver)
	}
	if sc, ok := cfg.Sources[domain.SourceChatwoot]; ok && sc.BaseURL != "" {
		conns[domain.SourceChatwoot] = chatwoot.New(sc, resolver)
	}
	return conns
}
