package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig tunes the circuit breaker around ListSessions.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failures that open the breaker.
	FailureThreshold uint32
	// Timeout is how long the breaker stays open before a trial request.
	Timeout time.Duration
	// OnStateChange is called on every transition, e.g. to export metrics.
	OnStateChange func(backend string, to gobreaker.State)
}

// Breaker wraps a Backend so that a server that keeps failing is not
// hammered every cycle. Probe bypasses the breaker.
type Breaker struct {
	Backend
	cb *gobreaker.CircuitBreaker[[]Session]
}

// NewBreaker decorates b with a circuit breaker.
func NewBreaker(b Backend, cfg BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "breaker", "backend", b.Name())

	settings := gobreaker.Settings{
		Name:        b.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// cancellation says nothing about the server's health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("media server circuit state changed", "from", from.String(), "to", to.String())
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, to)
			}
		},
	}
	return &Breaker{
		Backend: b,
		cb:      gobreaker.NewCircuitBreaker[[]Session](settings),
	}
}

// ListSessions runs the wrapped listing through the breaker. While open it
// fails fast with ErrUnreachable.
func (b *Breaker) ListSessions(ctx context.Context, filter Filter) ([]Session, error) {
	sessions, err := b.cb.Execute(func() ([]Session, error) {
		return b.Backend.ListSessions(ctx, filter)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return sessions, err
}

// State returns the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
