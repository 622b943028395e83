// Package cli is the operator control surface: thin cobra commands over
// the driving ports. Commands format and forward; the services do the
// work.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/recsync/internal/core/ports/driven"
	"github.com/custodia-labs/recsync/internal/core/ports/driving"
	"github.com/custodia-labs/recsync/internal/core/services"
	"github.com/custodia-labs/recsync/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services carries the wired application for the commands. Injected once
// from main before Execute.
type Services struct {
	Sync      driving.SyncService
	Queue     driving.QueueService
	Cursors   driving.CursorService
	Scheduler *services.Scheduler
	Config    driven.ConfigStore
}

var app Services

// SetServices injects the wired services.
func SetServices(s Services) {
	app = s
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

var rootCmd = &cobra.Command{
	Use:   "recsync",
	Short: "Multi-source incremental sync engine",
	Long: `recsync pulls customers, invoices, payments and tickets from Splynx,
ERPNext and Chatwoot into one canonical store, incrementally and in
dependency order, matching records that describe the same real-world
entity across sources.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
