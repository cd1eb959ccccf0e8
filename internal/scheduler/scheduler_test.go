package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/mail-ledger/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingRefresher struct {
	mu      sync.Mutex
	windows []core.DateRange
	err     error
	called  chan struct{}
}

func newCountingRefresher() *countingRefresher {
	return &countingRefresher{called: make(chan struct{}, 16)}
}

func (r *countingRefresher) Refresh(_ context.Context, w core.DateRange) (*core.BatchSummary, error) {
	r.mu.Lock()
	r.windows = append(r.windows, w)
	r.mu.Unlock()
	select {
	case r.called <- struct{}{}:
	default:
	}
	return &core.BatchSummary{}, r.err
}

func (r *countingRefresher) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

func waitForCall(t *testing.T, r *countingRefresher) {
	t.Helper()
	select {
	case <-r.called:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh was not called")
	}
}

func TestRunOnce_Window(t *testing.T) {
	r := newCountingRefresher()
	s := New(r, zap.NewNop(), Options{Interval: 2 * time.Hour})
	s.now = func() time.Time { return time.Date(2024, 3, 15, 1, 0, 0, 0, time.UTC) }

	s.RunOnce(context.Background())

	require.Equal(t, 1, r.calls())
	w := r.windows[0]
	assert.Equal(t, time.Date(2024, 3, 14, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, core.EndOfDay(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)), w.End)
}

func TestRunOnce_LogsFailure(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	r := newCountingRefresher()
	r.err = errors.New("dial tcp: connection refused")
	s := New(r, zap.New(obs), Options{Interval: time.Hour})

	s.RunOnce(context.Background())

	entries := logs.FilterMessage("Scheduled refresh failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "dial tcp: connection refused", entries[0].ContextMap()["error"])
}

func TestScheduler_TicksUntilStopped(t *testing.T) {
	r := newCountingRefresher()
	s := New(r, zap.NewNop(), Options{Interval: 10 * time.Millisecond})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	waitForCall(t, r)
	waitForCall(t, r)
	require.NoError(t, s.Stop())

	after := r.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, r.calls(), "no refresh after Stop")
	require.NoError(t, s.Stop())
}

func TestScheduler_RunOnStart(t *testing.T) {
	r := newCountingRefresher()
	s := New(r, zap.NewNop(), Options{Interval: time.Hour, RunOnStart: true})

	require.NoError(t, s.Start())
	waitForCall(t, r)
	require.NoError(t, s.Stop())
	assert.Equal(t, 1, r.calls())
}
