package cmd

import (
	"errors"
	"fmt"
	"sort"

	"github.com/harrison/seqwatch/internal/config"
	"github.com/harrison/seqwatch/internal/filelock"
	"github.com/harrison/seqwatch/internal/renamer"
	"github.com/harrison/seqwatch/internal/sequence"
	"github.com/spf13/cobra"
)

// NewRecoverCommand creates the recover command
func NewRecoverCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover [dir]",
		Short: "Move files left in the scratch directory back",
		Long: `Move files stranded in the scratch directory (for example after a crash or a
failed restore) back into the watched directory under their original names.

A file whose original name has been taken since is left in place and
reported. The scratch directory is removed once it is empty.

Refuses to run while a watcher holds the directory; the running watcher
recovers on exit or on its orphan_sweep_cron schedule.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRecover,
	}

	addConfigFlag(cmd)
	cmd.Flags().StringP("temp-dir", "t", ".temp_rename", "Scratch directory, relative to the watched directory")

	return cmd
}

func runRecover(cmd *cobra.Command, args []string) error {
	dir, err := config.ResolveWatchDir(dirArg(args))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}

	lock := filelock.NewDirLock(config.StateDir(dir))
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return fmt.Errorf("a watcher is running on %s; stop it first: %w", dir, err)
		}
		return err
	}
	defer lock.Unlock()

	r, err := renamer.New(renamer.Config{Dir: dir, ScratchDir: cfg.ScratchDir}, nil, sequence.NewAllocator(cfg.Digits, 0), nil)
	if err != nil {
		return err
	}

	rec, err := r.RecoverScratch()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, name := range rec.Restored {
		fmt.Fprintf(out, "restored  %s\n", name)
	}
	for _, name := range rec.Blocked {
		fmt.Fprintf(out, "blocked   %s (original name taken)\n", name)
	}
	names := make([]string, 0, len(rec.Failed))
	for name := range rec.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "failed    %s: %v\n", name, rec.Failed[name])
	}

	if err := r.RemoveScratch(); err != nil {
		fmt.Fprintf(out, "Scratch directory kept: %s\n", r.ScratchDir())
	}
	fmt.Fprintf(out, "Recovered %d file(s), %d blocked, %d failed\n", len(rec.Restored), len(rec.Blocked), len(rec.Failed))

	if len(rec.Failed) > 0 {
		return fmt.Errorf("%d scratch file(s) could not be recovered", len(rec.Failed))
	}
	return nil
}
