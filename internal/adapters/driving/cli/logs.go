package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

var logsLimit int

var logsCmd = &cobra.Command{
	Use:   "logs [source]",
	Short: "Show recent sync runs",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.Sync == nil {
			return errors.New("sync service not configured")
		}

		var source domain.SourceName
		if len(args) == 1 {
			source = domain.SourceName(args[0])
			if !source.Valid() {
				return fmt.Errorf("unknown source %q", args[0])
			}
		}

		logs, err := app.Sync.RecentLogs(cmd.Context(), source, logsLimit)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			cmd.Println("no runs recorded")
			return nil
		}

		cmd.Printf("%-20s %-9s %-10s %-12s %-10s %-7s %-7s %-7s %-6s %s\n",
			"STARTED", "SOURCE", "ENTITY", "TYPE", "STATUS", "FETCHED", "CREATED", "UPDATED", "FAILED", "ERROR")
		for i := range logs {
			l := &logs[i]
			cmd.Printf("%-20s %-9s %-10s %-12s %-10s %-7d %-7d %-7d %-6d %s\n",
				l.StartedAt.Format("2006-01-02 15:04:05"),
				l.Source, l.EntityType, l.SyncType, l.Status,
				l.RecordsFetched, l.RecordsCreated, l.RecordsUpdated, l.RecordsFailed,
				l.ErrorMessage)
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().IntVar(&logsLimit, "limit", 20, "maximum runs to show")
	rootCmd.AddCommand(logsCmd)
}
