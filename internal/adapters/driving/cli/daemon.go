package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recsync/internal/logger"
	"github.com/custodia-labs/recsync/internal/metrics"
)

var metricsAddr string

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scheduled syncs until interrupted",
	Long: `Starts the scheduler: one incremental sync per source on its
configured interval plus the dead-letter retry sweep. Config file
changes apply without a restart. With --metrics-addr a Prometheus
/metrics endpoint is served.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on (e.g. :9090)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if app.Scheduler == nil {
		return errors.New("scheduler not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening on %s", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// Config hot-reload: scheduler intervals and task switches apply
	// live. Connector credentials take effect on the next process start;
	// the watcher logs that case rather than silently half-applying.
	if app.Config != nil {
		updates, err := app.Config.Watch(ctx)
		if err != nil {
			logger.Warn("config watch unavailable: %v", err)
		} else {
			go func() {
				for cfg := range updates {
					logger.Info("config changed, reloading scheduler")
					app.Scheduler.Reload(ctx, cfg.Scheduler)
				}
			}()
		}
	}

	cmd.Println("daemon started; ctrl-c to stop")
	if err := app.Scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	cmd.Println("shutting down")
	return app.Scheduler.Stop()
}
