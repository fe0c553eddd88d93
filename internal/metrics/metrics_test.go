package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harrison/seqwatch/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveResult(t *testing.T) {
	m := New()

	m.ObserveResult(models.RenameResult{State: models.StateCommitted, Duration: time.Millisecond})
	m.ObserveResult(models.RenameResult{State: models.StateCommitted})
	m.ObserveResult(models.RenameResult{State: models.StateOrphaned})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.renames.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renames.WithLabelValues("orphaned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orphaned))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestObserveBatch(t *testing.T) {
	m := New()
	m.ObserveBatch(3)
	m.ObserveBatch(10)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.batches))
}

func TestUpdateAppliesIntakeDeltas(t *testing.T) {
	m := New()

	m.Update(models.StatsReport{
		Buffer: models.BufferSnapshot{Depth: 4, InFlight: 2, Capacity: 1000, Failures: map[string]int{"a.jpg": 1}},
		Intake: models.IntakeStats{"created": 5},
	})
	m.Update(models.StatsReport{
		Buffer: models.BufferSnapshot{Depth: 1, Capacity: 1000},
		Intake: models.IntakeStats{"created": 8, "duplicate": 1},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.depth))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.capacity))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.retrying))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.events.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("duplicate")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveResult(models.RenameResult{State: models.StateCommitted})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `seqwatch_renames_total{state="committed"} 1`)
}

func TestServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	m := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/metrics", addr))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), "seqwatch_buffer_depth")
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
