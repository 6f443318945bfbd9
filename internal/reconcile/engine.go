package reconcile

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/vmunix/prefetcharr/internal/dedup"
	"github.com/vmunix/prefetcharr/internal/library"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
)

// DefaultMaxConcurrency bounds per-cycle session workers.
const DefaultMaxConcurrency = 4

// Config controls how sessions become requests.
type Config struct {
	// PrefetchNum is how many episodes must be available ahead of playback.
	PrefetchNum int
	// RequestSeasons prefers whole-season requests over episode requests.
	RequestSeasons bool
	// ExcludeTag skips series carrying this tag label.
	ExcludeTag string
	// Filter restricts users and libraries.
	Filter mediaserver.Filter
	// MaxConcurrency bounds concurrent sessions within one cycle.
	MaxConcurrency int
}

// Engine reconciles playback sessions against the library.
type Engine struct {
	client library.Client
	cache  *dedup.Cache
	cfg    Config
	log    *slog.Logger
}

// NewEngine creates an engine. The dedup cache is shared across cycles.
func NewEngine(client library.Client, cache *dedup.Cache, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PrefetchNum < 1 {
		cfg.PrefetchNum = 1
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	return &Engine{
		client: client,
		cache:  cache,
		cfg:    cfg,
		log:    logger.With("component", "reconcile"),
	}
}

// Reconcile handles a single session.
func (e *Engine) Reconcile(ctx context.Context, session mediaserver.Session) Decision {
	return e.reconcile(ctx, newLookups(e.client), e.log, session)
}

// CycleResult summarizes one pass over the current sessions.
type CycleResult struct {
	Decisions []Decision
}

// Count returns how many decisions had the given outcome.
func (r CycleResult) Count(o Outcome) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// RunCycle reconciles all sessions concurrently and waits for every one
// of them. A failing session never affects the others.
func (e *Engine) RunCycle(ctx context.Context, cycleID string, sessions []mediaserver.Session) CycleResult {
	log := e.log.With("cycle", cycleID)
	lk := newLookups(e.client)
	decisions := make([]Decision, len(sessions))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrency)
	for i, s := range sessions {
		g.Go(func() error {
			decisions[i] = e.reconcile(ctx, lk, log, s)
			return nil
		})
	}
	_ = g.Wait()

	return CycleResult{Decisions: decisions}
}

func (e *Engine) reconcile(ctx context.Context, lk *lookups, log *slog.Logger, session mediaserver.Session) Decision {
	d := Decision{Session: session}
	log = log.With("series", session.Series.String(), "user", session.User.Name)

	if !e.cfg.Filter.Match(session.User, session.Library) {
		log.Debug("session excluded by user or library filter", "library", session.Library)
		return d.with(OutcomeExcluded)
	}

	ref, ok := session.Position()
	if !ok {
		log.Debug("skipping session without season or episode")
		return d.with(OutcomeSkipped)
	}
	pos := Position{Season: ref.Season, Episode: ref.Episode, Pilot: session.IsPilot()}
	log = log.With("season", pos.Season, "episode", pos.Episode)

	if pos.Season == 0 {
		log.Debug("skipping special")
		return d.with(OutcomeSkipped)
	}

	series, err := lk.findSeries(ctx, session.Series)
	if err != nil {
		if errors.Is(err, library.ErrSeriesNotFound) {
			log.Info("series not found in library")
			return d.with(OutcomeSkipped)
		}
		log.Error("series lookup failed", "error", err)
		return d.fail(err)
	}
	d.Series = series
	log = log.With("series_id", series.ID, "title", series.Title)

	if series.HasTag(e.cfg.ExcludeTag) {
		log.Debug("series excluded by tag", "tag", e.cfg.ExcludeTag)
		return d.with(OutcomeExcluded)
	}

	current, ok := series.Season(pos.Season)
	if !ok {
		log.Info("season not known to library")
		return d.with(OutcomeSkipped)
	}

	if e.seasonSatisfies(pos, current) {
		log.Debug("lookahead already downloaded")
		return d.with(OutcomeSatisfied)
	}

	episodes, err := lk.listEpisodes(ctx, series.ID)
	if err != nil {
		log.Error("episode lookup failed", "error", err)
		return d.fail(err)
	}

	w := ResolveWindow(pos, series, episodes, e.cfg.PrefetchNum)
	d.Window = w
	if w.Truncated {
		log.Warn("episode numbering gap ends lookahead early", "found", len(w.Episodes))
	}

	switch w.Target {
	case TargetNone:
		log.Debug("nothing to look ahead to")
		return d.with(OutcomeSkipped)
	case TargetFutureSeasons:
		return e.futureSeasons(ctx, lk, log, d)
	default:
		return e.request(ctx, lk, log, d)
	}
}

// seasonSatisfies is the cheap check made before listing episodes: the
// lookahead lies inside the current season and its statistics show every
// episode downloaded.
func (e *Engine) seasonSatisfies(pos Position, season library.Season) bool {
	if !season.Complete() {
		return false
	}
	if pos.IsPilot() {
		return pos.Season == 1
	}
	return pos.Episode+e.cfg.PrefetchNum <= season.EpisodeCount
}

// futureSeasons is recorded under the last known season: the lookahead
// ran off its end and there is nothing later to key on yet.
func (e *Engine) futureSeasons(ctx context.Context, lk *lookups, log *slog.Logger, d Decision) Decision {
	last := d.Window.LastKnownSeason
	d.Seasons = []int{last}

	if e.cache.AlreadyHandled(d.Series.ID, last) {
		log.Debug("future seasons already handled", "last_season", last)
		return d.with(OutcomeAlreadyHandled)
	}
	if d.Series.Monitored && d.Series.MonitorNewItems == "all" {
		log.Debug("series already monitors new seasons")
		return d.with(OutcomeSatisfied)
	}

	release, ok := e.cache.Claim(d.Series.ID, last)
	if !ok {
		return d.with(OutcomeAlreadyHandled)
	}
	defer release()
	if e.cache.AlreadyHandled(d.Series.ID, last) {
		return d.with(OutcomeAlreadyHandled)
	}

	log.Info("next season not known, monitoring new seasons", "last_season", last)
	if err := e.client.EnableFutureSeasons(ctx, d.Series); err != nil {
		log.Error("enabling future seasons failed", "last_season", last, "error", err)
		return d.fail(err)
	}
	e.cache.Record(d.Series.ID, last)
	lk.forget(d.Series.ID)
	return d.with(OutcomeFutureSeasons)
}

// plan is the set of calls a window needs.
type plan struct {
	seasons  []int             // whole-season requests
	episodes []library.Episode // episode requests
}

func (e *Engine) plan(w Window, series *library.Series) plan {
	var p plan
	seasonLevel := e.cfg.RequestSeasons || w.Target == TargetSeason

	for _, s := range w.Seasons {
		var missing []library.Episode
		listed := false
		for _, ep := range w.Episodes {
			if ep.Season != s {
				continue
			}
			listed = true
			if !ep.HasFile {
				missing = append(missing, ep)
			}
		}

		switch {
		case !listed:
			// unlisted season: counts are all there is to go on
			if st, ok := series.Season(s); !ok || !st.Complete() {
				p.seasons = append(p.seasons, s)
			}
		case len(missing) == 0:
		case seasonLevel:
			p.seasons = append(p.seasons, s)
		default:
			p.episodes = append(p.episodes, missing...)
		}
	}
	return p
}

func (e *Engine) covered(w Window, seasonLevel bool, seriesID int64) bool {
	for _, s := range w.Seasons {
		through := 0
		if !seasonLevel && !containsInt(w.Unlisted, s) {
			through = w.Through(s)
		}
		if !e.cache.Covers(seriesID, s, through) {
			return false
		}
	}
	return true
}

func (e *Engine) request(ctx context.Context, lk *lookups, log *slog.Logger, d Decision) Decision {
	w := d.Window
	series := d.Series
	seasonLevel := e.cfg.RequestSeasons || w.Target == TargetSeason
	d.Seasons = w.Seasons

	if e.covered(w, seasonLevel, series.ID) {
		log.Debug("skip previously processed item", "seasons", w.Seasons)
		return d.with(OutcomeAlreadyHandled)
	}

	p := e.plan(w, series)
	if len(p.seasons) == 0 && len(p.episodes) == 0 {
		log.Debug("lookahead already downloaded", "seasons", w.Seasons)
		return d.with(OutcomeSatisfied)
	}

	release, ok := e.cache.Claim(series.ID, w.Seasons...)
	if !ok {
		log.Debug("seasons being handled by another session", "seasons", w.Seasons)
		return d.with(OutcomeAlreadyHandled)
	}
	defer release()
	// another session may have finished between the check and the claim
	if e.covered(w, seasonLevel, series.ID) {
		return d.with(OutcomeAlreadyHandled)
	}

	acted := false
	if len(p.episodes) > 0 {
		log.Info("requesting episodes", "count", len(p.episodes))
		if err := e.client.RequestEpisodes(ctx, series.ID, p.episodes); err != nil {
			log.Error("episode request failed", "error", err)
			return d.fail(err)
		}
		d.Episodes = p.episodes
		acted = true
		for _, s := range distinctSeasons(p.episodes) {
			e.cache.RecordThrough(series.ID, s, w.Through(s))
		}
	}
	for _, s := range p.seasons {
		log.Info("requesting season", "target_season", s)
		if err := e.client.RequestSeason(ctx, series, s); err != nil {
			log.Error("season request failed", "target_season", s, "error", err)
			if acted {
				lk.forget(series.ID)
			}
			return d.fail(err)
		}
		acted = true
		e.cache.Record(series.ID, s)
	}
	lk.forget(series.ID)

	if len(p.seasons) > 0 {
		return d.with(OutcomeRequestedSeason)
	}
	return d.with(OutcomeRequestedEpisodes)
}

func distinctSeasons(eps []library.Episode) []int {
	var out []int
	for _, e := range eps {
		if !containsInt(out, e.Season) {
			out = append(out, e.Season)
		}
	}
	return out
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
