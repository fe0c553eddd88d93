// Package metrics exposes the pipeline's reporting surface as Prometheus
// metrics on a private registry.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/harrison/seqwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements worker.Observer and receives periodic stats reports.
type Metrics struct {
	registry *prometheus.Registry

	renames   *prometheus.CounterVec
	orphaned  prometheus.Counter
	duration  prometheus.Histogram
	batches   prometheus.Counter
	batchSize prometheus.Histogram
	depth     prometheus.Gauge
	inFlight  prometheus.Gauge
	capacity  prometheus.Gauge
	retrying  prometheus.Gauge
	events    *prometheus.CounterVec

	mu         sync.Mutex
	lastIntake map[string]int64
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		renames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seqwatch_renames_total",
			Help: "Processed files by terminal rename state.",
		}, []string{"state"}),
		orphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seqwatch_orphaned_total",
			Help: "Files left in the scratch directory after a failed restore.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seqwatch_rename_duration_seconds",
			Help:    "Time from dequeue to terminal state for one file.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seqwatch_batches_total",
			Help: "Non-empty batches extracted by workers.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seqwatch_batch_size",
			Help:    "Items per extracted batch.",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		}),
		depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seqwatch_buffer_depth",
			Help: "Items queued in the intake buffer.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seqwatch_buffer_in_flight",
			Help: "Items extracted but not yet marked.",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seqwatch_buffer_capacity",
			Help: "Configured intake buffer capacity.",
		}),
		retrying: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seqwatch_retry_ledger_entries",
			Help: "Filenames with at least one recorded failure.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seqwatch_intake_events_total",
			Help: "Filesystem events seen by the watcher, by kind.",
		}, []string{"kind"}),
		lastIntake: make(map[string]int64),
	}

	m.registry.MustRegister(
		m.renames, m.orphaned, m.duration, m.batches, m.batchSize,
		m.depth, m.inFlight, m.capacity, m.retrying, m.events,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveResult records one terminal rename result.
func (m *Metrics) ObserveResult(result models.RenameResult) {
	m.renames.WithLabelValues(result.State.String()).Inc()
	if result.State == models.StateOrphaned {
		m.orphaned.Inc()
	}
	m.duration.Observe(result.Duration.Seconds())
}

// ObserveBatch records one extracted batch.
func (m *Metrics) ObserveBatch(size int) {
	m.batches.Inc()
	m.batchSize.Observe(float64(size))
}

// Update applies a stats report. Intake counters are cumulative in the report,
// so only the increase since the previous report is added.
func (m *Metrics) Update(report models.StatsReport) {
	m.depth.Set(float64(report.Buffer.Depth))
	m.inFlight.Set(float64(report.Buffer.InFlight))
	m.capacity.Set(float64(report.Buffer.Capacity))
	m.retrying.Set(float64(len(report.Buffer.Failures)))

	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, v := range report.Intake {
		if delta := v - m.lastIntake[kind]; delta > 0 {
			m.events.WithLabelValues(kind).Add(float64(delta))
		}
		m.lastIntake[kind] = v
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
