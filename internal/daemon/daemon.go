// Package daemon wires the configured services together and runs them
// under a supervisor.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/vmunix/prefetcharr/internal/config"
	"github.com/vmunix/prefetcharr/internal/dedup"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
	"github.com/vmunix/prefetcharr/internal/metrics"
	"github.com/vmunix/prefetcharr/internal/probe"
	"github.com/vmunix/prefetcharr/internal/reconcile"
	"github.com/vmunix/prefetcharr/internal/scheduler"
	"github.com/vmunix/prefetcharr/internal/sonarr"
)

// ShutdownTimeout bounds how long an in-flight cycle may take to finish
// after a shutdown signal.
const ShutdownTimeout = 2 * time.Minute

// Daemon holds the wired components.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	backend   *mediaserver.Breaker
	sonarr    *sonarr.Client
	cache     *dedup.Cache
	engine    *reconcile.Engine
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
	prober    *probe.Prober
}

// Option configures a Daemon.
type Option func(*daemonOptions)

type daemonOptions struct {
	probeDelay time.Duration
}

// WithProbeDelay overrides the first probe backoff delay.
func WithProbeDelay(d time.Duration) Option {
	return func(o *daemonOptions) {
		o.probeDelay = d
	}
}

// New builds every component from cfg. Nothing is contacted yet.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	o := daemonOptions{probeDelay: probe.DefaultBaseDelay}
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = slog.Default()
	}

	raw, err := NewBackend(cfg.MediaServer, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	m.InitOutcomes(outcomeLabels()...)

	backend := mediaserver.NewBreaker(raw, mediaserver.BreakerConfig{
		OnStateChange: func(name string, to gobreaker.State) {
			m.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	}, logger)
	m.BreakerState.WithLabelValues(raw.Name()).Set(float64(gobreaker.StateClosed))

	sc := sonarr.New(cfg.Sonarr.URL, cfg.Sonarr.APIKey,
		sonarr.WithLogger(logger),
		sonarr.WithRateLimit(cfg.Sonarr.RequestsPerSecond),
		sonarr.WithFuzzyThreshold(cfg.Sonarr.FuzzyMatchThreshold),
	)

	cache := dedup.New()
	filter := mediaserver.Filter{Users: cfg.MediaServer.Users, Libraries: cfg.MediaServer.Libraries}
	engine := reconcile.NewEngine(sc, cache, reconcile.Config{
		PrefetchNum:    cfg.PrefetchNum,
		RequestSeasons: cfg.RequestSeasons,
		ExcludeTag:     cfg.Sonarr.ExcludeTag,
		Filter:         filter,
		MaxConcurrency: cfg.MaxConcurrency,
	}, logger)

	sched := scheduler.New(backend, engine, filter, cfg.Interval,
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(m, cache.Len),
	)

	prober := probe.New(
		probe.WithRetries(uint(cfg.ConnectionRetries)),
		probe.WithBaseDelay(o.probeDelay),
		probe.WithLogger(logger),
	)

	return &Daemon{
		cfg:       cfg,
		logger:    logger,
		backend:   backend,
		sonarr:    sc,
		cache:     cache,
		engine:    engine,
		scheduler: sched,
		metrics:   m,
		prober:    prober,
	}, nil
}

// Targets returns the services the prober checks, Sonarr first.
func (d *Daemon) Targets() []probe.Target {
	return []probe.Target{
		probe.Named{Label: "sonarr", Fn: d.sonarr.Probe},
		d.backend,
	}
}

// Probe checks every service once with retries and reports all results.
func (d *Daemon) Probe(ctx context.Context) []probe.Result {
	return d.prober.All(ctx, d.Targets()...)
}

// Run probes the services and then polls until ctx is canceled. A
// service that stays unreachable fails Run before the first cycle.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := d.prober.Run(ctx, d.Targets()...); err != nil {
		return fmt.Errorf("startup probe: %w", err)
	}
	d.checkExcludeTag(ctx)

	spec := suture.Spec{
		EventHook: (&sutureslog.Handler{Logger: d.logger}).MustHook(),
		Timeout:   ShutdownTimeout,
	}
	root := suture.New("prefetcharr", spec)
	root.Add(d.scheduler)

	if d.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              d.cfg.MetricsAddr,
			Handler:           metrics.Router(d.metrics, d.health),
			ReadHeaderTimeout: 10 * time.Second,
		}
		root.Add(newHTTPService(srv, 10*time.Second))
		d.logger.Info("serving metrics", "addr", d.cfg.MetricsAddr)
	}

	d.logger.Info("prefetcharr started",
		"media_server", d.cfg.MediaServer.Type,
		"interval", d.cfg.Interval,
		"prefetch_num", d.cfg.PrefetchNum,
		"request_seasons", d.cfg.RequestSeasons)

	err := root.Serve(ctx)

	if unstopped, _ := root.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			d.logger.Warn("service failed to stop", "service", svc.Name)
		}
	}
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return err
	}
	d.logger.Info("prefetcharr stopped")
	return nil
}

func (d *Daemon) health() error {
	return d.scheduler.Healthy(time.Minute)
}

// checkExcludeTag warns when the configured exclude tag does not exist.
// Lookups keep resolving labels, so a tag created later takes effect.
func (d *Daemon) checkExcludeTag(ctx context.Context) {
	tag := d.cfg.Sonarr.ExcludeTag
	if tag == "" {
		return
	}
	if _, err := d.sonarr.ResolveTag(ctx, tag); err != nil {
		d.logger.Warn("exclude tag not usable yet", "tag", tag, "error", err)
	}
}

func outcomeLabels() []string {
	labels := make([]string, 0, len(reconcile.Outcomes))
	for _, o := range reconcile.Outcomes {
		labels = append(labels, o.String())
	}
	return labels
}
