// Package scheduler drives reconciliation cycles on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/vmunix/prefetcharr/internal/mediaserver"
	"github.com/vmunix/prefetcharr/internal/metrics"
	"github.com/vmunix/prefetcharr/internal/reconcile"
)

// Reconciler handles one cycle's sessions.
type Reconciler interface {
	RunCycle(ctx context.Context, cycleID string, sessions []mediaserver.Session) reconcile.CycleResult
}

// Scheduler polls the media server and hands its sessions to the
// reconciler. Cycles never overlap: the next one starts at the later of
// the previous start plus the interval and the previous end.
type Scheduler struct {
	backend    mediaserver.Backend
	reconciler Reconciler
	filter     mediaserver.Filter
	interval   time.Duration
	clock      clockwork.Clock
	metrics    *metrics.Metrics
	dedupLen   func() int
	newID      func() string
	logger     *slog.Logger

	mu        sync.Mutex
	lastCycle time.Time
	cycles    int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock driving the interval.
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// WithMetrics records cycle metrics. dedupLen, if set, feeds the dedup gauge.
func WithMetrics(m *metrics.Metrics, dedupLen func() int) Option {
	return func(s *Scheduler) {
		s.metrics = m
		s.dedupLen = dedupLen
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// New creates a scheduler.
func New(backend mediaserver.Backend, r Reconciler, filter mediaserver.Filter, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		backend:    backend,
		reconciler: r,
		filter:     filter,
		interval:   interval,
		clock:      clockwork.NewRealClock(),
		newID:      func() string { return uuid.NewString() },
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Serve runs cycles until ctx is canceled. The first cycle starts
// immediately. A cycle in flight when ctx is canceled runs to completion.
func (s *Scheduler) Serve(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval, "backend", s.backend.Name())
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("scheduler stopped")
			return err
		}

		start := s.clock.Now()
		s.RunOnce(context.WithoutCancel(ctx))
		end := s.clock.Now()

		wait := start.Add(s.interval).Sub(end)
		if wait <= 0 {
			s.logger.Warn("cycle took longer than the interval", "duration", end.Sub(start), "interval", s.interval)
			continue
		}

		timer := s.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// String implements fmt.Stringer for the supervisor.
func (s *Scheduler) String() string {
	return "scheduler"
}

// RunOnce performs a single cycle.
func (s *Scheduler) RunOnce(ctx context.Context) reconcile.CycleResult {
	cycleID := s.newID()
	log := s.logger.With("cycle", cycleID)
	start := s.clock.Now()

	sessions, err := s.backend.ListSessions(ctx, s.filter)
	if err != nil {
		log.Error("listing sessions failed", "backend", s.backend.Name(), "error", err)
		s.finish(start, "poll_error")
		return reconcile.CycleResult{}
	}
	log.Debug("sessions listed", "count", len(sessions))

	res := s.reconciler.RunCycle(ctx, cycleID, sessions)

	if s.metrics != nil {
		s.metrics.SessionsObserved.Add(float64(len(sessions)))
		for _, d := range res.Decisions {
			s.metrics.Decisions.WithLabelValues(d.Outcome.String()).Inc()
		}
		if s.dedupLen != nil {
			s.metrics.DedupEntries.Set(float64(s.dedupLen()))
		}
	}

	acted := 0
	for _, d := range res.Decisions {
		if d.Outcome.Acted() {
			acted++
		}
	}
	log.Info("cycle finished",
		"sessions", len(sessions),
		"requested", acted,
		"failed", res.Count(reconcile.OutcomeFailed),
		"duration", s.clock.Since(start))
	s.finish(start, "ok")
	return res
}

func (s *Scheduler) finish(start time.Time, result string) {
	end := s.clock.Now()
	if s.metrics != nil {
		s.metrics.ObserveCycle(result, start, end)
	}
	s.mu.Lock()
	s.lastCycle = end
	s.cycles++
	s.mu.Unlock()
}

// Cycles returns how many cycles have completed.
func (s *Scheduler) Cycles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cycles
}

// Healthy reports an error when no cycle has finished within two
// intervals plus grace.
func (s *Scheduler) Healthy(grace time.Duration) error {
	s.mu.Lock()
	last := s.lastCycle
	s.mu.Unlock()

	if last.IsZero() {
		return nil
	}
	if age := s.clock.Since(last); age > 2*s.interval+grace {
		return fmt.Errorf("no cycle finished in %s", age.Round(time.Second))
	}
	return nil
}
