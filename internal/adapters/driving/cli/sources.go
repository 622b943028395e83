package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recsync/internal/core/domain"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage upstream sources",
}

var sourcesTestCmd = &cobra.Command{
	Use:   "test [source]",
	Short: "Check connectivity and credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if app.Sync == nil {
			return errors.New("sync service not configured")
		}
		ctx := cmd.Context()

		sources := domain.SourceOrder
		if len(args) == 1 {
			source := domain.SourceName(args[0])
			if !source.Valid() {
				return errors.New("unknown source " + args[0])
			}
			sources = []domain.SourceName{source}
		}

		failed := false
		for _, source := range sources {
			if app.Sync.TestConnection(ctx, source) {
				cmd.Printf("%-9s ok\n", source)
			} else {
				cmd.Printf("%-9s FAILED\n", source)
				failed = true
			}
		}
		if failed {
			return errors.New("one or more sources are not reachable")
		}
		return nil
	},
}

func init() {
	sourcesCmd.AddCommand(sourcesTestCmd)
	rootCmd.AddCommand(sourcesCmd)
}
