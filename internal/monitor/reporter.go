// Package monitor periodically polls the pipeline's reporting surface and
// publishes a combined stats report.
package monitor

import (
	"context"
	"time"

	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
)

// BufferSource reports intake buffer state.
type BufferSource interface {
	Snapshot() models.BufferSnapshot
}

// PoolSource reports worker counters.
type PoolSource interface {
	Stats() models.PoolStats
}

// IntakeSource reports watcher event counters.
type IntakeSource interface {
	Stats() models.IntakeStats
}

// Publisher receives every report besides the logger, e.g. metrics.
type Publisher interface {
	Update(report models.StatsReport)
}

// Reporter builds StatsReports on an interval.
type Reporter struct {
	interval   time.Duration
	buffer     BufferSource
	pool       PoolSource
	intake     IntakeSource
	logger     logger.Logger
	publishers []Publisher
}

// NewReporter creates a Reporter. intake may be nil when no watcher runs.
func NewReporter(interval time.Duration, buffer BufferSource, pool PoolSource, intake IntakeSource, log logger.Logger, publishers ...Publisher) *Reporter {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Reporter{
		interval:   interval,
		buffer:     buffer,
		pool:       pool,
		intake:     intake,
		logger:     log,
		publishers: publishers,
	}
}

// Run emits a report every interval until ctx is cancelled. A non-positive
// interval disables periodic reports.
func (r *Reporter) Run(ctx context.Context) error {
	if r.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Emit()
		}
	}
}

// Collect builds a report without publishing it.
func (r *Reporter) Collect() models.StatsReport {
	report := models.StatsReport{At: time.Now()}
	if r.buffer != nil {
		report.Buffer = r.buffer.Snapshot()
	}
	if r.pool != nil {
		report.Pool = r.pool.Stats()
	}
	if r.intake != nil {
		report.Intake = r.intake.Stats()
	}
	return report
}

// Emit collects a report, logs it and hands it to every publisher.
func (r *Reporter) Emit() models.StatsReport {
	report := r.Collect()
	r.logger.LogStats(report)
	for _, p := range r.publishers {
		p.Update(report)
	}
	return report
}
