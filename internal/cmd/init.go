package cmd

import (
	"fmt"
	"os"

	"github.com/harrison/seqwatch/internal/config"
	"github.com/harrison/seqwatch/internal/filelock"
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command
func NewInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a config file for a directory",
		Long: `Write <dir>/.seqwatch/config.yaml with the default settings, adjusted by
any flags given, so later runs of watch need no flags.

Example:
  seqwatch init ~/Pictures/scans -e "jpg,png" -d 4`,
		Args: cobra.MaximumNArgs(1),
		RunE: runInit,
	}

	addMatchFlags(cmd)
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := config.ResolveWatchDir(dirArg(args))
	if err != nil {
		return err
	}

	path := config.ConfigPath(dir)
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	cfg.MergeWithFlags(overridesFromFlags(cmd))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	if err := filelock.AtomicWrite(path, data); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
