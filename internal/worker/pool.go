// Package worker runs the fixed pool of rename workers that drain the intake
// buffer in batches.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
	"github.com/harrison/seqwatch/internal/renamer"
)

// Source is the buffer side of the pipeline.
type Source interface {
	ExtractBatch(ctx context.Context, maxItems int, timeout time.Duration) []models.PendingItem
	Admit(path string) bool
	MarkSuccess(name string)
	MarkFailed(name string)
}

// Processor renames a single item. Implementations must not panic, but the
// pool recovers anyway.
type Processor interface {
	Process(item models.PendingItem) models.RenameResult
}

// Observer receives every result and batch size, for metrics and history.
type Observer interface {
	ObserveResult(result models.RenameResult)
	ObserveBatch(size int)
}

// Config holds pool settings.
type Config struct {
	Workers         int
	BatchSize       int
	BatchTimeout    time.Duration
	RequeueRestored bool // Re-offer restored items instead of waiting for a fresh event
}

// Pool is a fixed set of workers sharing one Source.
type Pool struct {
	cfg       Config
	source    Source
	processor Processor
	logger    logger.Logger
	observers []Observer

	processed atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	batches   atomic.Int64
	restored  atomic.Int64
	orphaned  atomic.Int64
}

// NewPool creates a pool. Workers and BatchSize below 1 are raised to 1.
func NewPool(cfg Config, source Source, processor Processor, log logger.Logger, observers ...Observer) *Pool {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	cfg.Workers = max(cfg.Workers, 1)
	cfg.BatchSize = max(cfg.BatchSize, 1)

	return &Pool{
		cfg:       cfg,
		source:    source,
		processor: processor,
		logger:    log,
		observers: observers,
	}
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has finished the batch it holds. It always returns nil; failures are per
// item and never stop a worker.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for id := 1; id <= p.cfg.Workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.work(ctx, id)
		}(id)
	}

	p.logger.LogDebug(fmt.Sprintf("Started %d workers (batch %d, timeout %s)", p.cfg.Workers, p.cfg.BatchSize, p.cfg.BatchTimeout))
	wg.Wait()
	p.logger.LogDebug("All workers stopped")
	return nil
}

func (p *Pool) work(ctx context.Context, id int) {
	for ctx.Err() == nil {
		batch := p.source.ExtractBatch(ctx, p.cfg.BatchSize, p.cfg.BatchTimeout)
		if len(batch) == 0 {
			continue
		}

		p.batches.Add(1)
		for _, o := range p.observers {
			o.ObserveBatch(len(batch))
		}
		p.logger.LogTrace(fmt.Sprintf("Worker %d extracted %d items", id, len(batch)))

		// The whole batch is owned by this worker; finish it even if
		// shutdown was requested meanwhile.
		for _, item := range batch {
			p.handle(item)
		}
	}
}

func (p *Pool) handle(item models.PendingItem) {
	result := p.process(item)

	p.processed.Add(1)
	switch result.State {
	case models.StateCommitted:
		p.succeeded.Add(1)
		p.source.MarkSuccess(item.Name)
	default:
		p.failed.Add(1)
		p.source.MarkFailed(item.Name)
	}
	switch result.State {
	case models.StateRestored:
		p.restored.Add(1)
		if p.cfg.RequeueRestored && p.source.Admit(item.Path) {
			p.logger.LogDebug(fmt.Sprintf("Requeued %s for retry", item.Name))
		}
	case models.StateOrphaned:
		p.orphaned.Add(1)
	}

	p.logger.LogRename(result)
	for _, o := range p.observers {
		o.ObserveResult(result)
	}
}

// process shields the worker loop from a panicking Processor.
func (p *Pool) process(item models.PendingItem) (result models.RenameResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.RenameResult{
				Item:  item,
				State: models.StateFailed,
				Err:   fmt.Errorf("%w: %v", renamer.ErrPanic, r),
			}
		}
	}()
	return p.processor.Process(item)
}

// Stats returns cumulative counters.
func (p *Pool) Stats() models.PoolStats {
	return models.PoolStats{
		Processed: p.processed.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
		Batches:   p.batches.Load(),
		Restored:  p.restored.Load(),
		Orphaned:  p.orphaned.Load(),
	}
}
