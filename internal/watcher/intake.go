package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harrison/seqwatch/internal/buffer"
	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
	"github.com/harrison/seqwatch/internal/naming"
	"golang.org/x/time/rate"
)

// DefaultMaxRecent bounds the event dedup set between periodic clears.
const DefaultMaxRecent = 1000

// Offerer is the admission side of the intake buffer.
type Offerer interface {
	Offer(path string) buffer.Admission
}

// IntakeConfig holds intake settings.
type IntakeConfig struct {
	DedupWindow time.Duration // How long repeated events are dropped; 0 disables
	MaxRecent   int           // Dedup keys kept before an early clear
	WarnEvery   time.Duration // Minimum gap between buffer-full warnings
}

// eventKey identifies a repeat of the same event for the same file content.
type eventKey struct {
	path string
	size int64 // -1 when the file could not be stat'ed
	op   FileOp
}

// Intake filters events and offers eligible files to the buffer.
type Intake struct {
	matcher *naming.Matcher
	buffer  Offerer
	logger  logger.Logger
	warn    *rate.Limiter
	now     func() time.Time

	window    time.Duration
	maxRecent int

	mu        sync.Mutex
	recent    map[eventKey]struct{}
	lastClear time.Time
	stats     map[string]int64
}

// NewIntake creates an Intake.
func NewIntake(cfg IntakeConfig, matcher *naming.Matcher, buf Offerer, log logger.Logger) *Intake {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if cfg.MaxRecent <= 0 {
		cfg.MaxRecent = DefaultMaxRecent
	}
	if cfg.WarnEvery <= 0 {
		cfg.WarnEvery = 5 * time.Second
	}

	return &Intake{
		matcher:   matcher,
		buffer:    buf,
		logger:    log,
		warn:      rate.NewLimiter(rate.Every(cfg.WarnEvery), 1),
		now:       time.Now,
		window:    cfg.DedupWindow,
		maxRecent: cfg.MaxRecent,
		recent:    make(map[eventKey]struct{}),
		lastClear: time.Now(),
		stats:     make(map[string]int64),
	}
}

// Handle counts ev and, for creations of eligible files, offers the path to
// the buffer. A removal or rename away ends the dedup history of that path, so
// a new file created under the same name is offered again. Safe for
// concurrent use.
func (in *Intake) Handle(ev FileEvent) {
	in.count(ev.Op.String())
	switch ev.Op {
	case FileRemoved, FileRenamed:
		in.forget(ev.Path)
		return
	case FileCreated:
	default:
		return
	}

	name := filepath.Base(ev.Path)
	if verdict := in.matcher.Classify(name); verdict != naming.Eligible {
		in.count(verdict.String())
		in.logger.LogTrace(fmt.Sprintf("Skipped %s: %s", name, verdict))
		return
	}

	key := eventKey{path: ev.Path, size: -1, op: ev.Op}
	if info, err := os.Lstat(ev.Path); err == nil {
		if info.IsDir() {
			return
		}
		key.size = info.Size()
	}
	if in.seen(key) {
		in.count("duplicate")
		return
	}

	admission := in.buffer.Offer(ev.Path)
	in.count(admission.String())
	switch admission {
	case buffer.Admitted:
		in.logger.LogDebug(fmt.Sprintf("Queued %s", name))
	case buffer.RejectedFull:
		if in.warn.Allow() {
			in.logger.LogWarn(fmt.Sprintf("Buffer full, dropping %s", name))
		}
	default:
		in.logger.LogDebug(fmt.Sprintf("Not queued %s: %s", name, admission))
	}
}

// seen records key and reports whether it was already present in the
// current window. The set is cleared when the window passes, or when a new
// key would grow it past maxRecent.
func (in *Intake) seen(key eventKey) bool {
	if in.window <= 0 {
		return false
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	now := in.now()
	if now.Sub(in.lastClear) >= in.window {
		clear(in.recent)
		in.lastClear = now
	}
	if _, ok := in.recent[key]; ok {
		return true
	}
	if len(in.recent) >= in.maxRecent {
		clear(in.recent)
		in.lastClear = now
	}
	in.recent[key] = struct{}{}
	return false
}

// forget drops every recorded event for path.
func (in *Intake) forget(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()

	for key := range in.recent {
		if key.path == path {
			delete(in.recent, key)
		}
	}
}

func (in *Intake) count(key string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.stats[key]++
}

// Stats returns a copy of the event counters.
func (in *Intake) Stats() models.IntakeStats {
	in.mu.Lock()
	defer in.mu.Unlock()

	out := make(models.IntakeStats, len(in.stats))
	for k, v := range in.stats {
		out[k] = v
	}
	return out
}
