package cli

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

var (
	queueSource   string
	queueResolved bool
	queueLimit    int
	resolveNotes  string
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the dead-letter queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued records",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if app.Queue == nil {
			return errors.New("queue service not configured")
		}
		ctx := cmd.Context()

		entries, err := app.Queue.List(ctx, domain.SourceName(queueSource), queueResolved, queueLimit)
		if err != nil {
			return err
		}

		stats, err := app.Queue.Stats(ctx)
		if err != nil {
			return err
		}
		for _, source := range domain.SourceOrder {
			if s, ok := stats[source]; ok {
				cmd.Printf("%-9s pending=%-4d resolved=%d\n", source, s.Pending, s.Resolved)
			}
		}
		if len(entries) == 0 {
			cmd.Println("queue is empty")
			return nil
		}

		cmd.Printf("\n%-5s %-9s %-10s %-14s %-8s %-7s %s\n", "ID", "SOURCE", "ENTITY", "EXTERNAL ID", "TYPE", "RETRIES", "ERROR")
		for i := range entries {
			e := &entries[i]
			cmd.Printf("%-5d %-9s %-10s %-14s %-8s %d/%-5d %s\n",
				e.ID, e.Source, e.EntityType, e.ExternalID, e.ErrorType, e.RetryCount, e.MaxRetries, e.ErrorMessage)
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <id>",
	Short: "Re-arm a queued record for immediate retry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.Queue == nil {
			return errors.New("queue service not configured")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.New("id must be a number")
		}
		if err := app.Queue.Retry(cmd.Context(), id); err != nil {
			return err
		}
		cmd.Printf("entry %d re-armed; the next retry sweep picks it up\n", id)
		return nil
	},
}

var queueResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark a queued record as manually resolved",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.Queue == nil {
			return errors.New("queue service not configured")
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return errors.New("id must be a number")
		}
		if err := app.Queue.Resolve(cmd.Context(), id, resolveNotes); err != nil {
			return err
		}
		cmd.Printf("entry %d resolved\n", id)
		return nil
	},
}

func init() {
	queueListCmd.Flags().StringVar(&queueSource, "source", "", "filter by source")
	queueListCmd.Flags().BoolVar(&queueResolved, "resolved", false, "include resolved entries")
	queueListCmd.Flags().IntVar(&queueLimit, "limit", 50, "maximum entries to show")
	queueResolveCmd.Flags().StringVar(&resolveNotes, "notes", "", "what was done about it")

	queueCmd.AddCommand(queueListCmd, queueRetryCmd, queueResolveCmd)
	rootCmd.AddCommand(queueCmd)
}
