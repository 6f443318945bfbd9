package reconcile

import (
	"github.com/vmunix/prefetcharr/internal/library"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
)

// Outcome is what happened to a session.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeExcluded
	OutcomeAlreadyHandled
	OutcomeSatisfied
	OutcomeRequestedEpisodes
	OutcomeRequestedSeason
	OutcomeFutureSeasons
	OutcomeFailed
)

// Outcomes lists every outcome, for metric initialization.
var Outcomes = []Outcome{
	OutcomeSkipped,
	OutcomeExcluded,
	OutcomeAlreadyHandled,
	OutcomeSatisfied,
	OutcomeRequestedEpisodes,
	OutcomeRequestedSeason,
	OutcomeFutureSeasons,
	OutcomeFailed,
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeExcluded:
		return "excluded"
	case OutcomeAlreadyHandled:
		return "already_handled"
	case OutcomeSatisfied:
		return "satisfied"
	case OutcomeRequestedEpisodes:
		return "requested_episodes"
	case OutcomeRequestedSeason:
		return "requested_season"
	case OutcomeFutureSeasons:
		return "future_seasons"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Acted reports whether the library was asked to change something.
func (o Outcome) Acted() bool {
	switch o {
	case OutcomeRequestedEpisodes, OutcomeRequestedSeason, OutcomeFutureSeasons:
		return true
	}
	return false
}

// Decision records how a session was handled.
type Decision struct {
	Outcome Outcome
	Session mediaserver.Session
	Series  *library.Series
	Window  Window
	// Seasons are the seasons the decision concerned.
	Seasons []int
	// Episodes are the episodes requested, if any.
	Episodes []library.Episode
	Err      error
}

func (d Decision) with(o Outcome) Decision {
	d.Outcome = o
	return d
}

func (d Decision) fail(err error) Decision {
	d.Outcome = OutcomeFailed
	d.Err = err
	return d
}
