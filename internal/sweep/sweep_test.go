package sweep

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harrison/seqwatch/internal/models"
	"github.com/harrison/seqwatch/internal/renamer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecoverer struct {
	calls atomic.Int32
	rec   renamer.Recovery
	err   error
}

func (f *fakeRecoverer) RecoverScratch() (renamer.Recovery, error) {
	f.calls.Add(1)
	return f.rec, f.err
}

type captureLogger struct {
	mu       sync.Mutex
	messages []string
}

func (c *captureLogger) add(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, level+" "+msg)
}

func (c *captureLogger) LogTrace(m string)             { c.add("TRACE", m) }
func (c *captureLogger) LogDebug(m string)             { c.add("DEBUG", m) }
func (c *captureLogger) LogInfo(m string)              { c.add("INFO", m) }
func (c *captureLogger) LogWarn(m string)              { c.add("WARN", m) }
func (c *captureLogger) LogError(m string)             { c.add("ERROR", m) }
func (c *captureLogger) LogRename(models.RenameResult) {}
func (c *captureLogger) LogStats(models.StatsReport)   {}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("*/5 * * * *"))
	assert.NoError(t, Validate("@hourly"))
	assert.Error(t, Validate("every five minutes"))
	assert.Error(t, Validate("61 * * * *"))
}

func TestNewRejectsInvalidCron(t *testing.T) {
	_, err := New("not a cron", &fakeRecoverer{}, nil)
	assert.Error(t, err)
}

func TestRunOnceLogsSummary(t *testing.T) {
	log := &captureLogger{}
	rec := &fakeRecoverer{rec: renamer.Recovery{
		Restored: []string{"a.jpg", "b.jpg"},
		Blocked:  []string{"c.jpg"},
		Failed:   map[string]error{"d.jpg": errors.New("busy")},
	}}
	s, err := New("@hourly", rec, log)
	require.NoError(t, err)

	got, err := s.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, got.Restored)

	assert.Contains(t, log.messages, "INFO Recovered 2 scratch files: a.jpg, b.jpg")
	assert.Contains(t, log.messages, "WARN Scratch files blocked by existing names (manual cleanup required): c.jpg")
	assert.Contains(t, log.messages, "ERROR Failed to recover d.jpg: busy")
}

func TestRunOnceEmptyIsQuiet(t *testing.T) {
	log := &captureLogger{}
	s, err := New("@hourly", &fakeRecoverer{}, log)
	require.NoError(t, err)

	_, err = s.RunOnce()
	require.NoError(t, err)
	assert.Empty(t, log.messages)
}

func TestRunTicksUntilCancelled(t *testing.T) {
	rec := &fakeRecoverer{}
	s, err := New("@hourly", rec, nil)
	require.NoError(t, err)
	s.next = func(from time.Time) (time.Time, error) {
		return from.Add(10 * time.Millisecond), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return rec.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRunJobLogsErrors(t *testing.T) {
	log := &captureLogger{}
	s, err := New("@hourly", &fakeRecoverer{err: errors.New("permission denied")}, log)
	require.NoError(t, err)

	s.runJob()
	assert.Contains(t, log.messages, "ERROR Scratch sweep failed: permission denied")
}
