package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect and reset sync cursors",
}

var cursorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all cursors",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if app.Cursors == nil {
			return errors.New("cursor service not configured")
		}

		cursors, err := app.Cursors.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(cursors) == 0 {
			cmd.Println("no cursors yet; nothing has synced")
			return nil
		}

		cmd.Printf("%-9s %-10s %-20s %-12s %-7s %s\n", "SOURCE", "ENTITY", "WATERMARK", "LAST ID", "SYNCED", "TOKEN")
		for i := range cursors {
			c := &cursors[i]
			watermark := "-"
			if !c.LastModifiedAt.IsZero() {
				watermark = c.LastModifiedAt.Format("2006-01-02 15:04:05")
			}
			token := c.CursorValue
			if token == "" {
				token = "-"
			}
			cmd.Printf("%-9s %-10s %-20s %-12s %-7d %s\n",
				c.Source, c.EntityType, watermark, c.LastID, c.RecordsSynced, token)
		}
		return nil
	},
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset <source> <entity>",
	Short: "Clear a cursor so the next run starts from empty",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.Cursors == nil {
			return errors.New("cursor service not configured")
		}
		source := domain.SourceName(args[0])
		if !source.Valid() {
			return fmt.Errorf("unknown source %q", args[0])
		}

		entity := domain.EntityType(args[1])
		if err := app.Cursors.Reset(cmd.Context(), source, entity); err != nil {
			return err
		}
		cmd.Printf("cursor %s/%s cleared; the next run fetches from the beginning\n", source, entity)
		return nil
	},
}

func init() {
	cursorCmd.AddCommand(cursorListCmd, cursorResetCmd)
	rootCmd.AddCommand(cursorCmd)
}
