// Package reconcile turns playback sessions into acquisition decisions.
package reconcile

import (
	"slices"

	"github.com/vmunix/prefetcharr/internal/library"
	"github.com/vmunix/prefetcharr/internal/media"
)

// Target is what a window asks the library to make available.
type Target int

const (
	// TargetNone means there is nothing to look ahead to (specials, or a
	// numbering gap right after the current episode).
	TargetNone Target = iota
	// TargetEpisodes is a lookahead of individual episodes.
	TargetEpisodes
	// TargetSeason is a whole season, used for pilots.
	TargetSeason
	// TargetFutureSeasons means the lookahead runs past the last known season.
	TargetFutureSeasons
)

func (t Target) String() string {
	switch t {
	case TargetEpisodes:
		return "episodes"
	case TargetSeason:
		return "season"
	case TargetFutureSeasons:
		return "future-seasons"
	default:
		return "none"
	}
}

// Position is where playback currently is.
type Position struct {
	Season  int
	Episode int
	Pilot   bool
}

// IsPilot reports whether the position is a series premiere.
func (p Position) IsPilot() bool {
	return p.Pilot || (p.Season == 1 && p.Episode == 1)
}

func (p Position) ref() media.EpisodeRef {
	return media.EpisodeRef{Season: p.Season, Episode: p.Episode}
}

// Window is the resolved lookahead.
type Window struct {
	Target Target
	// Episodes are the listed target episodes in playback order.
	Episodes []library.Episode
	// Seasons are the distinct target seasons, ascending.
	Seasons []int
	// Unlisted are target seasons the library knows but lists no episodes for.
	Unlisted []int
	// LastKnownSeason is set for TargetFutureSeasons.
	LastKnownSeason int
	// Truncated is set when a numbering gap ended the walk early.
	Truncated bool
}

// Through returns the highest target episode number within season s, or 0.
func (w Window) Through(s int) int {
	through := 0
	for _, e := range w.Episodes {
		if e.Season == s && e.Number > through {
			through = e.Number
		}
	}
	return through
}

// ResolveWindow computes the prefetch lookahead for a playback position.
//
// The window holds the next prefetch episodes after the current one,
// crossing into the following season when the current one runs out.
// Specials never take part. A pilot always targets all of season 1. If the
// walk runs off the end of the last known season the window is
// TargetFutureSeasons instead of a partial list.
func ResolveWindow(pos Position, series *library.Series, episodes []library.Episode, prefetch int) Window {
	if pos.Season <= 0 {
		return Window{Target: TargetNone}
	}

	regular := make([]library.Episode, 0, len(episodes))
	for _, e := range episodes {
		if e.Season > 0 {
			regular = append(regular, e)
		}
	}
	library.SortEpisodes(regular)
	known := series.SeasonNumbers()

	if pos.IsPilot() {
		w := Window{
			Target:   TargetSeason,
			Episodes: library.SeasonEpisodes(regular, 1),
			Seasons:  []int{1},
		}
		if len(w.Episodes) == 0 {
			w.Unlisted = []int{1}
		}
		return w
	}

	prefetch = max(prefetch, 1)
	cur := pos.ref()
	prev := cur
	var (
		out       []library.Episode
		truncated bool
	)
	for _, e := range regular {
		if len(out) == prefetch {
			break
		}
		if !cur.Less(e.Ref()) {
			continue
		}
		if !follows(prev, e.Ref(), known) {
			truncated = true
			break
		}
		out = append(out, e)
		prev = e.Ref()
	}

	w := Window{Target: TargetEpisodes, Episodes: out, Truncated: truncated}
	if len(out) < prefetch && !truncated {
		// ran out of listed episodes
		next, ok := nextSeason(known, prev.Season)
		if !ok {
			last := max(pos.Season, series.LastSeason())
			return Window{Target: TargetFutureSeasons, LastKnownSeason: last}
		}
		w.Unlisted = []int{next}
	}
	if len(w.Episodes) == 0 && len(w.Unlisted) == 0 {
		w.Target = TargetNone
		return w
	}

	for _, e := range w.Episodes {
		if !slices.Contains(w.Seasons, e.Season) {
			w.Seasons = append(w.Seasons, e.Season)
		}
	}
	for _, s := range w.Unlisted {
		if !slices.Contains(w.Seasons, s) {
			w.Seasons = append(w.Seasons, s)
		}
	}
	slices.Sort(w.Seasons)
	return w
}

// follows reports whether next directly continues prev: the following
// episode of the same season, or episode 1 of the next known season.
func follows(prev, next media.EpisodeRef, known []int) bool {
	if next.Season == prev.Season {
		return next.Episode == prev.Episode+1
	}
	if next.Episode != 1 {
		return false
	}
	s, ok := nextSeason(known, prev.Season)
	if !ok {
		// the listing knows a season the series summary does not
		return next.Season == prev.Season+1
	}
	return next.Season == s
}

func nextSeason(known []int, after int) (int, bool) {
	for _, s := range known {
		if s > after {
			return s, true
		}
	}
	return 0, false
}
