package cmd

import (
	"fmt"
	"os"

	"github.com/harrison/seqwatch/internal/config"
	"github.com/harrison/seqwatch/internal/history"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [dir]",
		Short: "Show journaled renames",
		Long: `Print the most recent entries of the rename journal written by watch when
history is enabled (history.enabled in the config, or --history-db).

Examples:
  seqwatch history
  seqwatch history ~/Pictures/scans --limit 50
  seqwatch history --state orphaned
  seqwatch history --runs`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	addConfigFlag(cmd)
	cmd.Flags().String("history-db", "", "History database (default: history.db_path from config)")
	cmd.Flags().Int("limit", 20, "Maximum entries to show")
	cmd.Flags().String("state", "", "Only show entries in this state (committed, restored, orphaned, failed)")
	cmd.Flags().Bool("runs", false, "List watch runs instead of renames")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	dir, err := config.ResolveWatchDir(dirArg(args))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}

	dbPath := config.ResolvePath(dir, cfg.History.DBPath)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("no history database at %s: %w", dbPath, err)
	}

	store, err := history.NewStore(dbPath, nil)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	out := cmd.OutOrStdout()

	if runs, _ := cmd.Flags().GetBool("runs"); runs {
		list, err := store.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		for _, r := range list {
			ended := "running"
			if r.EndedAt.Valid {
				ended = r.EndedAt.Time.Local().Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(out, "%s  %s  %s -> %s  processed %d, succeeded %d, failed %d, orphaned %d\n",
				r.ID, r.Directory, r.StartedAt.Local().Format("2006-01-02 15:04:05"), ended,
				r.Processed, r.Succeeded, r.Failed, r.Orphaned)
		}
		return nil
	}

	state, _ := cmd.Flags().GetString("state")
	entries, err := store.Recent(cmd.Context(), limit, state)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No renames recorded")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-9s  %s", e.RecordedAt.Local().Format("2006-01-02 15:04:05"), e.State, e.OriginalName)
		switch {
		case e.NewName != "":
			line += " -> " + e.NewName
		case e.OrphanPath != "":
			line += " (orphan at " + e.OrphanPath + ")"
		}
		if e.ErrorMessage != "" {
			line += ": " + e.ErrorMessage
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
