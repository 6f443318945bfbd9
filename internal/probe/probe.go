// Package probe checks that the configured services are reachable before
// the daemon starts polling.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/vmunix/prefetcharr/internal/mediaserver"
	"github.com/vmunix/prefetcharr/internal/sonarr"
)

// Defaults for the retry schedule: 2s, 4s, 8s, ... capped at MaxDelay.
const (
	DefaultRetries   = 5
	DefaultBaseDelay = 2 * time.Second
	DefaultMaxDelay  = 60 * time.Second
)

// ErrUnreachable is returned when a service stays unreachable after every attempt.
var ErrUnreachable = errors.New("service unreachable")

// Target is anything that can be probed.
type Target interface {
	Name() string
	Probe(ctx context.Context) error
}

// Result is the outcome of probing one target.
type Result struct {
	Name     string
	Attempts int
	Duration time.Duration
	Err      error
}

// OK reports whether the target answered.
func (r Result) OK() bool { return r.Err == nil }

// Prober probes targets with bounded exponential backoff.
type Prober struct {
	retries   uint
	baseDelay time.Duration
	maxDelay  time.Duration
	log       *slog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithRetries sets how many attempts follow the first one.
func WithRetries(n uint) Option {
	return func(p *Prober) {
		p.retries = n
	}
}

// WithBaseDelay sets the first backoff delay.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Prober) {
		p.baseDelay = d
	}
}

// WithMaxDelay caps a single backoff delay.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Prober) {
		p.maxDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Prober) {
		p.log = l
	}
}

// New creates a Prober.
func New(opts ...Option) *Prober {
	p := &Prober{
		retries:   DefaultRetries,
		baseDelay: DefaultBaseDelay,
		maxDelay:  DefaultMaxDelay,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With("component", "probe")
	return p
}

// Probe checks one target, retrying transient failures. Rejected
// credentials are not retried.
func (p *Prober) Probe(ctx context.Context, t Target) Result {
	start := time.Now()
	attempts := 0

	err := retry.Do(
		func() error {
			attempts++
			return t.Probe(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(p.retries+1),
		retry.Delay(p.baseDelay),
		retry.MaxDelay(p.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			p.log.Warn("service not reachable, retrying",
				"service", t.Name(),
				"attempt", n+1,
				"of", p.retries+1,
				"error", err)
		}),
	)

	res := Result{Name: t.Name(), Attempts: attempts, Duration: time.Since(start)}
	if err != nil {
		if !errors.Is(err, ErrUnreachable) && retryable(err) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %s after %d attempts: %w", ErrUnreachable, t.Name(), attempts, err)
		}
		res.Err = err
		return res
	}
	p.log.Info("service reachable", "service", t.Name(), "attempts", attempts)
	return res
}

// Run probes targets in order and stops at the first that fails.
func (p *Prober) Run(ctx context.Context, targets ...Target) ([]Result, error) {
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		r := p.Probe(ctx, t)
		results = append(results, r)
		if r.Err != nil {
			return results, r.Err
		}
	}
	return results, nil
}

// All probes every target regardless of failures, for reporting.
func (p *Prober) All(ctx context.Context, targets ...Target) []Result {
	results := make([]Result, 0, len(targets))
	for _, t := range targets {
		results = append(results, p.Probe(ctx, t))
	}
	return results
}

func retryable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, mediaserver.ErrAuth), errors.Is(err, sonarr.ErrUnauthorized):
		return false
	}
	return true
}

// Named adapts a probe function to Target.
type Named struct {
	Label string
	Fn    func(ctx context.Context) error
}

func (n Named) Name() string                    { return n.Label }
func (n Named) Probe(ctx context.Context) error { return n.Fn(ctx) }
