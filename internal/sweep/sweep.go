// Package sweep periodically moves abandoned scratch files back into the
// watched directory on a cron schedule.
package sweep

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/renamer"
)

// Recoverer restores scratch files. *renamer.Renamer implements it.
type Recoverer interface {
	RecoverScratch() (renamer.Recovery, error)
}

// Validate reports whether expr is a cron expression gronx accepts.
func Validate(expr string) error {
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

// Sweeper runs RecoverScratch on a schedule.
type Sweeper struct {
	cron      string
	recoverer Recoverer
	logger    logger.Logger
	next      func(from time.Time) (time.Time, error)

	mu      sync.Mutex
	running bool
}

// New creates a Sweeper for a valid cron expression.
func New(cron string, recoverer Recoverer, log logger.Logger) (*Sweeper, error) {
	if err := Validate(cron); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Sweeper{
		cron:      cron,
		recoverer: recoverer,
		logger:    log,
		next: func(from time.Time) (time.Time, error) {
			return gronx.NextTickAfter(cron, from, false)
		},
	}, nil
}

// Run sweeps at every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.LogDebug(fmt.Sprintf("Scratch sweep scheduled (%s)", s.cron))

	for {
		next, err := s.next(time.Now())
		if err != nil {
			s.logger.LogError(fmt.Sprintf("Sweep schedule failed for %q: %v", s.cron, err))
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}

		select {
		case <-time.After(wait):
			s.runJob()
		case <-ctx.Done():
			return nil
		}
	}
}

// runJob skips a tick that fires while the previous sweep is still running.
func (s *Sweeper) runJob() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if _, err := s.RunOnce(); err != nil {
		s.logger.LogError(fmt.Sprintf("Scratch sweep failed: %v", err))
	}
}

// RunOnce performs one sweep and logs what it found.
func (s *Sweeper) RunOnce() (renamer.Recovery, error) {
	rec, err := s.recoverer.RecoverScratch()
	if err != nil {
		return rec, err
	}
	LogRecovery(s.logger, rec)
	return rec, nil
}

// LogRecovery writes a summary of rec. Nothing is logged for an empty sweep.
func LogRecovery(log logger.Logger, rec renamer.Recovery) {
	if len(rec.Restored) > 0 {
		log.LogInfo(fmt.Sprintf("Recovered %d scratch files: %s", len(rec.Restored), strings.Join(rec.Restored, ", ")))
	}
	if len(rec.Blocked) > 0 {
		log.LogWarn(fmt.Sprintf("Scratch files blocked by existing names (manual cleanup required): %s", strings.Join(rec.Blocked, ", ")))
	}
	if len(rec.InFlight) > 0 {
		log.LogDebug(fmt.Sprintf("Skipped %d in-flight scratch files", len(rec.InFlight)))
	}
	if len(rec.Failed) > 0 {
		names := make([]string, 0, len(rec.Failed))
		for name := range rec.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			log.LogError(fmt.Sprintf("Failed to recover %s: %v", name, rec.Failed[name]))
		}
	}
}
