package monitor

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/harrison/seqwatch/internal/logger"
	"github.com/harrison/seqwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBuffer struct{ snap models.BufferSnapshot }

func (s stubBuffer) Snapshot() models.BufferSnapshot { return s.snap }

type stubPool struct{ stats models.PoolStats }

func (s stubPool) Stats() models.PoolStats { return s.stats }

type stubIntake struct{ stats models.IntakeStats }

func (s stubIntake) Stats() models.IntakeStats { return s.stats }

type recordingPublisher struct {
	mu      sync.Mutex
	reports []models.StatsReport
}

func (p *recordingPublisher) Update(r models.StatsReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reports)
}

func TestCollect(t *testing.T) {
	r := NewReporter(time.Second,
		stubBuffer{models.BufferSnapshot{Depth: 3, Capacity: 10}},
		stubPool{models.PoolStats{Processed: 7}},
		stubIntake{models.IntakeStats{"created": 9}},
		nil,
	)

	report := r.Collect()
	assert.Equal(t, 3, report.Buffer.Depth)
	assert.Equal(t, int64(7), report.Pool.Processed)
	assert.Equal(t, int64(9), report.Intake["created"])
	assert.WithinDuration(t, time.Now(), report.At, time.Second)
}

func TestCollectWithoutIntake(t *testing.T) {
	r := NewReporter(time.Second, stubBuffer{}, stubPool{}, nil, nil)
	assert.Nil(t, r.Collect().Intake)
}

func TestEmitLogsAndPublishes(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewConsoleLogger(&buf, "info")
	pub := &recordingPublisher{}

	r := NewReporter(time.Second,
		stubBuffer{models.BufferSnapshot{Depth: 5, Capacity: 100}},
		stubPool{models.PoolStats{Processed: 2, Succeeded: 2, Batches: 1}},
		nil, log, pub,
	)
	r.Emit()

	assert.Equal(t, 1, pub.count())
	assert.Contains(t, buf.String(), "Stats - buffer:")
	assert.Contains(t, buf.String(), "processed: 2")
}

func TestRunTicks(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewReporter(10*time.Millisecond, stubBuffer{}, stubPool{}, nil, nil, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return pub.count() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestRunDisabled(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewReporter(0, stubBuffer{}, stubPool{}, nil, nil, pub)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.NoError(t, r.Run(ctx))
	assert.Equal(t, 0, pub.count())
}
