package cmd

import (
	"fmt"
	"strings"

	"github.com/harrison/seqwatch/internal/config"
	"github.com/harrison/seqwatch/internal/naming"
	"github.com/harrison/seqwatch/internal/sequence"
	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command
func NewSeedCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed [dir]",
		Short: "Show where the sequence would continue",
		Long: `Scan a directory the way watch does at startup and print the highest
existing number and the next name that would be handed out.

Only names that are exactly <digits><suffix> count. Numeric names with a
different width are listed separately and are not used for seeding.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSeed,
	}

	addConfigFlag(cmd)
	addMatchFlags(cmd)

	return cmd
}

func runSeed(cmd *cobra.Command, args []string) error {
	dir, err := config.ResolveWatchDir(dirArg(args))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, dir)
	if err != nil {
		return err
	}
	if err := cfg.RequireSuffix(); err != nil {
		return err
	}

	matcher, err := naming.NewMatcher(cfg.MatcherOptions())
	if err != nil {
		return err
	}
	seed, err := sequence.Seed(dir, matcher)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Directory:      %s\n", dir)
	fmt.Fprintf(out, "Pattern:        %s\n", matcher.String())
	fmt.Fprintf(out, "Numbered files: %d\n", seed.Numbered)
	fmt.Fprintf(out, "Highest:        %0*d\n", cfg.Digits, seed.Max)

	next, err := sequence.NewAllocator(cfg.Digits, seed.Max).Next("")
	if err != nil {
		fmt.Fprintf(out, "Next:           none (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Next:           %s\n", next)
	}

	if len(seed.ForeignWidth) > 0 {
		fmt.Fprintf(out, "Other widths:   %s\n", strings.Join(seed.ForeignWidth, ", "))
	}
	return nil
}
