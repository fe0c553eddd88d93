package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for seqwatch
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seqwatch",
		Short: "Rename new files in a directory to a numeric sequence",
		Long: `Seqwatch watches a directory and renames every new file whose name matches
a suffix pattern to the next number in a fixed-width sequence (001.jpg,
002.jpg, ...).

Bursts of files are buffered and renamed in batches by a pool of workers.
Each rename is staged through a scratch directory first, so the watcher
never mistakes its own output for a new file and a failed rename puts the
file back where it was.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewWatchCommand())
	cmd.AddCommand(NewSeedCommand())
	cmd.AddCommand(NewRecoverCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewInitCommand())

	return cmd
}
