package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harrison/seqwatch/internal/buffer"
	"github.com/harrison/seqwatch/internal/config"
	"github.com/harrison/seqwatch/internal/filelock"
	"github.com/harrison/seqwatch/internal/history"
	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/metrics"
	"github.com/harrison/seqwatch/internal/monitor"
	"github.com/harrison/seqwatch/internal/naming"
	"github.com/harrison/seqwatch/internal/renamer"
	"github.com/harrison/seqwatch/internal/sequence"
	"github.com/harrison/seqwatch/internal/sweep"
	"github.com/harrison/seqwatch/internal/watcher"
	"github.com/harrison/seqwatch/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewWatchCommand creates the watch command
func NewWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Watch a directory and rename new files to a numeric sequence",
		Long: `Watch a directory (default: the current directory) and rename every new file
matching the suffix pattern to the next number in the sequence.

The counter starts after the highest existing numbered file, so restarts
never reuse a number. Press Ctrl+C to stop; files being renamed are finished
and leftovers in the scratch directory are moved back.

Configuration is loaded from <dir>/.seqwatch/config.yaml if present, then
from .env and SEQWATCH_* environment variables. CLI flags win over both.

Examples:
  seqwatch watch ~/Pictures/scans -e jpg
  seqwatch watch . -e "jpg,png" -i -d 4
  seqwatch watch . -p '_final\.tiff?$' -w 5 --batch-size 20
  seqwatch watch . -e jpg --metrics-addr :9464 --history-db .seqwatch/history.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: runWatch,
	}

	addConfigFlag(cmd)
	addMatchFlags(cmd)
	cmd.Flags().IntP("workers", "w", 3, "Number of rename workers")
	cmd.Flags().Int("buffer-size", 1000, "Maximum files waiting in the intake buffer")
	cmd.Flags().Int("batch-size", 10, "Maximum files a worker takes at once")
	cmd.Flags().Duration("batch-timeout", 500*time.Millisecond, "How long a worker waits to fill a batch")
	cmd.Flags().Int("max-retries", 3, "Failures after which a filename is no longer retried")
	cmd.Flags().Bool("debug", false, "Enable debug logging (same as --log-level debug)")
	cmd.Flags().String("log-level", "info", "Log level: trace, debug, info, warn, error")
	cmd.Flags().String("log-dir", "", "Also write logs to this directory")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().String("history-db", "", "Journal renames to this SQLite database")

	return cmd
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	log, closeLog, err := setupLogger(cmd.OutOrStdout(), cfg, dir)
	if err != nil {
		return err
	}
	defer closeLog()

	lock := filelock.NewDirLock(config.StateDir(dir))
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return watchDir(ctx, dir, cfg, log)
}

// watchDir runs the whole pipeline on dir until ctx is cancelled.
func watchDir(ctx context.Context, dir string, cfg *config.Config, log logger.Logger) error {
	matcher, err := naming.NewMatcher(cfg.MatcherOptions())
	if err != nil {
		return err
	}

	seed, err := sequence.Seed(dir, matcher)
	if err != nil {
		return err
	}
	if len(seed.ForeignWidth) > 0 {
		log.LogWarn(fmt.Sprintf("Ignoring %d numeric names with a width other than %d: %s",
			len(seed.ForeignWidth), cfg.Digits, strings.Join(seed.ForeignWidth, ", ")))
	}
	seq := sequence.NewAllocator(cfg.Digits, seed.Max)

	r, err := renamer.New(renamer.Config{
		Dir:           dir,
		ScratchDir:    cfg.ScratchDir,
		ProbeAttempts: cfg.ProbeAttempts,
		ProbeDelay:    cfg.ProbeDelay,
		MaxCollisions: renamer.DefaultMaxCollisions,
	}, matcher, seq, log)
	if err != nil {
		return err
	}

	buf := buffer.New(buffer.Config{Capacity: cfg.BufferSize, MaxRetries: cfg.MaxRetries})

	var observers []worker.Observer
	var publishers []monitor.Publisher

	var prom *metrics.Metrics
	if cfg.MetricsAddr != "" {
		prom = metrics.New()
		observers = append(observers, prom)
		publishers = append(publishers, prom)
	}

	var journal *history.Store
	if cfg.History.Enabled {
		journal, err = history.NewStore(config.ResolvePath(dir, cfg.History.DBPath), log)
		if err != nil {
			return fmt.Errorf("failed to open history: %w", err)
		}
		defer journal.Close()
		if _, err := journal.StartRun(ctx, dir, matcher.String(), cfg.Digits, seed.Max); err != nil {
			return err
		}
		observers = append(observers, journal)
	}

	pool := worker.NewPool(worker.Config{
		Workers:         cfg.Workers,
		BatchSize:       cfg.BatchSize,
		BatchTimeout:    cfg.BatchTimeout,
		RequeueRestored: cfg.RequeueRestored,
	}, buf, r, log, observers...)

	w, err := watcher.New(dir, log)
	if err != nil {
		return err
	}
	intake := watcher.NewIntake(watcher.IntakeConfig{DedupWindow: cfg.EventDedupWindow}, matcher, buf, log)
	reporter := monitor.NewReporter(cfg.StatsInterval, buf, pool, intake, log, publishers...)

	var sweeper *sweep.Sweeper
	if cfg.OrphanSweepCron != "" {
		sweeper, err = sweep.New(cfg.OrphanSweepCron, r, log)
		if err != nil {
			return err
		}
	}

	log.LogInfo(fmt.Sprintf("Renaming files matching %s in %s (next: %0*d, %d workers)",
		matcher.String(), dir, cfg.Digits, seed.Max+1, cfg.Workers))

	// Files left in scratch by a previous crash are moved back now that the
	// watcher is registered, so their create events are picked up.
	if rec, err := r.RecoverScratch(); err != nil {
		log.LogWarn(fmt.Sprintf("Startup recovery failed: %v", err))
	} else {
		sweep.LogRecovery(log, rec)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx, intake) })
	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return reporter.Run(gctx) })
	if prom != nil {
		g.Go(func() error { return prom.Serve(gctx, cfg.MetricsAddr) })
	}
	if sweeper != nil {
		g.Go(func() error { return sweeper.Run(gctx) })
	}

	runErr := g.Wait()
	buf.Close()
	log.LogInfo("Shutting down")

	if cfg.RecoverOnExit {
		shutdownRecovery(r, log)
	}

	final := reporter.Emit()
	if journal != nil {
		if err := journal.FinishRun(context.Background(), final.Pool); err != nil {
			log.LogWarn(fmt.Sprintf("History: %v", err))
		}
	}

	return runErr
}

// shutdownRecovery moves anything left in scratch back and removes the
// scratch directory when it ends up empty.
func shutdownRecovery(r *renamer.Renamer, log logger.Logger) {
	rec, err := r.RecoverScratch()
	if err != nil {
		log.LogError(fmt.Sprintf("Shutdown recovery failed: %v", err))
		return
	}
	sweep.LogRecovery(log, rec)

	if err := r.RemoveScratch(); err != nil {
		log.LogWarn(fmt.Sprintf("Scratch directory kept: %v", err))
		return
	}
	log.LogDebug(fmt.Sprintf("Removed scratch directory %s", r.ScratchDir()))
}
