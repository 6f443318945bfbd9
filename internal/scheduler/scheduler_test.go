package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/prefetcharr/internal/media"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
	"github.com/vmunix/prefetcharr/internal/mediaserver/mocks"
	"github.com/vmunix/prefetcharr/internal/metrics"
	"github.com/vmunix/prefetcharr/internal/reconcile"
)

const interval = 15 * time.Minute

// fakeReconciler reports each cycle on a channel and optionally blocks.
type fakeReconciler struct {
	mu      sync.Mutex
	ctxs    []context.Context
	ids     []string
	started chan struct{}
	release chan struct{}
	during  func()
}

func newFakeReconciler() *fakeReconciler {
	return &fakeReconciler{started: make(chan struct{}, 16)}
}

func (f *fakeReconciler) RunCycle(ctx context.Context, cycleID string, sessions []mediaserver.Session) reconcile.CycleResult {
	f.mu.Lock()
	f.ctxs = append(f.ctxs, ctx)
	f.ids = append(f.ids, cycleID)
	f.mu.Unlock()

	f.started <- struct{}{}
	if f.during != nil {
		f.during()
	}
	if f.release != nil {
		<-f.release
	}

	res := reconcile.CycleResult{}
	for _, s := range sessions {
		res.Decisions = append(res.Decisions, reconcile.Decision{Outcome: reconcile.OutcomeSatisfied, Session: s})
	}
	return res
}

func (f *fakeReconciler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids)
}

func testSession() mediaserver.Session {
	return mediaserver.Session{
		User:    media.User{ID: "1", Name: "alice"},
		Series:  media.SeriesIdentity{TVDBID: 42},
		Season:  mediaserver.Int(1),
		Episode: mediaserver.Int(2),
	}
}

func newTestScheduler(t *testing.T, r Reconciler, opts ...Option) (*Scheduler, *mocks.MockBackend, *clockwork.FakeClock) {
	t.Helper()
	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().Name().Return("jellyfin").AnyTimes()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	opts = append([]Option{
		WithClock(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}, opts...)
	return New(backend, r, mediaserver.Filter{}, interval, opts...), backend, clock
}

func waitCycle(t *testing.T, r *fakeReconciler) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not start")
	}
}

func TestScheduler_RunsOnInterval(t *testing.T) {
	r := newFakeReconciler()
	s, backend, clock := newTestScheduler(t, r)
	backend.EXPECT().ListSessions(gomock.Any(), mediaserver.Filter{}).
		Return([]mediaserver.Session{testSession()}, nil).Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	waitCycle(t, r)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	// nothing happens before the interval elapses
	clock.Advance(interval - time.Second)
	assert.Equal(t, 1, r.calls())

	clock.Advance(time.Second)
	waitCycle(t, r)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 2, s.Cycles())

	r.mu.Lock()
	assert.NotEqual(t, r.ids[0], r.ids[1], "each cycle has its own id")
	r.mu.Unlock()
}

func TestScheduler_InFlightCycleFinishes(t *testing.T) {
	r := newFakeReconciler()
	r.release = make(chan struct{})
	s, backend, _ := newTestScheduler(t, r)
	backend.EXPECT().ListSessions(gomock.Any(), gomock.Any()).Return([]mediaserver.Session{testSession()}, nil).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	waitCycle(t, r)
	cancel()

	select {
	case <-done:
		t.Fatal("scheduler returned while a cycle was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	r.mu.Lock()
	assert.NoError(t, r.ctxs[0].Err(), "cycle context is detached from cancellation")
	r.mu.Unlock()

	close(r.release)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, 1, s.Cycles())
}

func TestScheduler_NoTickAfterCancel(t *testing.T) {
	r := newFakeReconciler()
	s, _, _ := newTestScheduler(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Serve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.calls())
}

func TestScheduler_OverrunStartsNextImmediately(t *testing.T) {
	r := newFakeReconciler()
	s, backend, clock := newTestScheduler(t, r)
	backend.EXPECT().ListSessions(gomock.Any(), gomock.Any()).Return(nil, nil).MinTimes(2)

	first := true
	r.during = func() {
		if first {
			first = false
			clock.Advance(2 * interval)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	waitCycle(t, r)
	waitCycle(t, r)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	cancel()
	<-done
	assert.Equal(t, 2, s.Cycles())
}

func TestScheduler_PollErrorSkipsCycle(t *testing.T) {
	r := newFakeReconciler()
	m := metrics.New()
	s, backend, _ := newTestScheduler(t, r, WithMetrics(m, func() int { return 3 }))
	backend.EXPECT().ListSessions(gomock.Any(), gomock.Any()).Return(nil, mediaserver.ErrUnreachable)

	res := s.RunOnce(context.Background())
	assert.Empty(t, res.Decisions)
	assert.Zero(t, r.calls())
	assert.Equal(t, 1, s.Cycles())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("poll_error")))
}

func TestScheduler_RecordsMetrics(t *testing.T) {
	r := newFakeReconciler()
	m := metrics.New()
	s, backend, _ := newTestScheduler(t, r, WithMetrics(m, func() int { return 3 }))
	backend.EXPECT().ListSessions(gomock.Any(), gomock.Any()).
		Return([]mediaserver.Session{testSession(), testSession()}, nil)

	res := s.RunOnce(context.Background())

	assert.Len(t, res.Decisions, 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsObserved))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("satisfied")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DedupEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CyclesTotal.WithLabelValues("ok")))
}

func TestScheduler_Healthy(t *testing.T) {
	r := newFakeReconciler()
	s, backend, clock := newTestScheduler(t, r)
	backend.EXPECT().ListSessions(gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))

	assert.NoError(t, s.Healthy(time.Minute), "healthy before the first cycle")

	s.RunOnce(context.Background())
	assert.NoError(t, s.Healthy(time.Minute))

	clock.Advance(2*interval + 2*time.Minute)
	assert.Error(t, s.Healthy(time.Minute))
}
