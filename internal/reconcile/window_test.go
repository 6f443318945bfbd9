package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/prefetcharr/internal/library"
)

// listing builds counts[i] episodes in season i+1, plus one special.
func listing(counts ...int) []library.Episode {
	var out []library.Episode
	id := int64(1)
	out = append(out, library.Episode{ID: 999, Season: 0, Number: 1})
	for i, n := range counts {
		for e := 1; e <= n; e++ {
			out = append(out, library.Episode{ID: id, Season: i + 1, Number: e})
			id++
		}
	}
	return out
}

func seriesWith(seasons ...int) *library.Series {
	s := &library.Series{ID: 1, Title: "Show"}
	s.Seasons = append(s.Seasons, library.Season{Number: 0})
	for _, n := range seasons {
		s.Seasons = append(s.Seasons, library.Season{Number: n})
	}
	return s
}

func refs(eps []library.Episode) []string {
	out := make([]string, 0, len(eps))
	for _, e := range eps {
		out = append(out, e.Ref().String())
	}
	return out
}

func TestResolveWindow_WithinSeason(t *testing.T) {
	w := ResolveWindow(Position{Season: 1, Episode: 3}, seriesWith(1, 2), listing(10, 10), 2)

	assert.Equal(t, TargetEpisodes, w.Target)
	assert.Equal(t, []string{"S01E04", "S01E05"}, refs(w.Episodes))
	assert.Equal(t, []int{1}, w.Seasons)
	assert.Empty(t, w.Unlisted)
	assert.Equal(t, 5, w.Through(1))
	assert.Equal(t, 0, w.Through(2))
}

func TestResolveWindow_CrossesSeasonBoundary(t *testing.T) {
	w := ResolveWindow(Position{Season: 1, Episode: 9}, seriesWith(1, 2), listing(10, 10), 3)

	assert.Equal(t, TargetEpisodes, w.Target)
	assert.Equal(t, []string{"S01E10", "S02E01", "S02E02"}, refs(w.Episodes))
	assert.Equal(t, []int{1, 2}, w.Seasons)
}

func TestResolveWindow_Monotonic(t *testing.T) {
	series := seriesWith(1, 2, 3)
	eps := listing(6, 6, 6)

	for prefetch := 1; prefetch <= 8; prefetch++ {
		for season := 1; season <= 3; season++ {
			for ep := 1; ep <= 6; ep++ {
				pos := Position{Season: season, Episode: ep}
				if pos.IsPilot() {
					continue
				}
				w := ResolveWindow(pos, series, eps, prefetch)
				prev := pos.ref()
				for _, e := range w.Episodes {
					assert.True(t, prev.Less(e.Ref()), "%v not after %v", e.Ref(), prev)
					assert.NotZero(t, e.Season, "specials never part of a window")
					prev = e.Ref()
				}
				assert.LessOrEqual(t, len(w.Episodes), prefetch)
				assert.True(t, w.Target == TargetFutureSeasons || len(w.Episodes) == prefetch,
					"S%02dE%02d prefetch %d: target %v with %d episodes", season, ep, prefetch, w.Target, len(w.Episodes))
			}
		}
	}
}

func TestResolveWindow_Pilot(t *testing.T) {
	for _, prefetch := range []int{1, 10} {
		w := ResolveWindow(Position{Season: 1, Episode: 1}, seriesWith(1, 2), listing(8, 8), prefetch)

		assert.Equal(t, TargetSeason, w.Target, "prefetch %d", prefetch)
		assert.Equal(t, []int{1}, w.Seasons)
		assert.Len(t, w.Episodes, 8)
	}
}

func TestResolveWindow_FlaggedPilotWithoutListing(t *testing.T) {
	w := ResolveWindow(Position{Season: 1, Episode: 1, Pilot: true}, seriesWith(1), nil, 2)

	assert.Equal(t, TargetSeason, w.Target)
	assert.Equal(t, []int{1}, w.Unlisted)
	assert.Empty(t, w.Episodes)
}

func TestResolveWindow_Special(t *testing.T) {
	w := ResolveWindow(Position{Season: 0, Episode: 1}, seriesWith(1), listing(5), 2)
	assert.Equal(t, TargetNone, w.Target)
}

func TestResolveWindow_RunsPastLastSeason(t *testing.T) {
	w := ResolveWindow(Position{Season: 2, Episode: 9}, seriesWith(1, 2), listing(10, 10), 3)

	assert.Equal(t, TargetFutureSeasons, w.Target)
	assert.Equal(t, 2, w.LastKnownSeason)
	assert.Empty(t, w.Episodes, "no partial window past the last season")
}

func TestResolveWindow_LastEpisodeOfFinalSeason(t *testing.T) {
	w := ResolveWindow(Position{Season: 2, Episode: 10}, seriesWith(1, 2), listing(10, 10), 1)

	assert.Equal(t, TargetFutureSeasons, w.Target)
	assert.Equal(t, 2, w.LastKnownSeason)
}

func TestResolveWindow_PlayingSeasonMissingFromSummary(t *testing.T) {
	// season 3 is listed but the series summary stops at 2
	w := ResolveWindow(Position{Season: 3, Episode: 4}, seriesWith(1, 2), listing(4, 4, 4), 2)

	assert.Equal(t, TargetFutureSeasons, w.Target)
	assert.Equal(t, 3, w.LastKnownSeason)
}

func TestResolveWindow_NextSeasonUnlisted(t *testing.T) {
	// season 3 is known but has no episodes listed yet
	w := ResolveWindow(Position{Season: 2, Episode: 9}, seriesWith(1, 2, 3), listing(10, 10), 3)

	assert.Equal(t, TargetEpisodes, w.Target)
	assert.Equal(t, []string{"S02E10"}, refs(w.Episodes))
	assert.Equal(t, []int{3}, w.Unlisted)
	assert.Equal(t, []int{2, 3}, w.Seasons)
}

func TestResolveWindow_GapTruncates(t *testing.T) {
	eps := []library.Episode{
		{ID: 1, Season: 1, Number: 1},
		{ID: 2, Season: 1, Number: 2},
		{ID: 3, Season: 1, Number: 3},
		{ID: 5, Season: 1, Number: 5},
		{ID: 6, Season: 1, Number: 6},
	}
	w := ResolveWindow(Position{Season: 1, Episode: 2}, seriesWith(1), eps, 3)

	assert.True(t, w.Truncated)
	assert.Equal(t, TargetEpisodes, w.Target)
	assert.Equal(t, []string{"S01E03"}, refs(w.Episodes))
}

func TestResolveWindow_GapRightAfterCurrent(t *testing.T) {
	eps := []library.Episode{
		{ID: 1, Season: 1, Number: 2},
		{ID: 2, Season: 1, Number: 4},
	}
	w := ResolveWindow(Position{Season: 1, Episode: 2}, seriesWith(1), eps, 2)

	assert.Equal(t, TargetNone, w.Target)
	assert.True(t, w.Truncated)
}

func TestResolveWindow_UnsortedListing(t *testing.T) {
	eps := listing(4, 4)
	for i, j := 0, len(eps)-1; i < j; i, j = i+1, j-1 {
		eps[i], eps[j] = eps[j], eps[i]
	}
	w := ResolveWindow(Position{Season: 1, Episode: 4}, seriesWith(1, 2), eps, 2)

	require.Equal(t, TargetEpisodes, w.Target)
	assert.Equal(t, []string{"S02E01", "S02E02"}, refs(w.Episodes))
}
