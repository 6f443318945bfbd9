// Package library describes the TV library service prefetcharr acquires
// episodes through, independent of its transport.
package library

import (
	"context"
	"slices"

	"github.com/vmunix/prefetcharr/internal/media"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks . Client

// Client is the library service as seen by the reconciliation engine.
type Client interface {
	// FindSeries resolves a series by TVDB id, or by title when the identity
	// carries no id. Returns ErrSeriesNotFound when nothing matches, and an
	// error when the series' tags cannot be resolved.
	FindSeries(ctx context.Context, id media.SeriesIdentity) (*Series, error)

	// Episodes lists every episode the service knows for a series.
	Episodes(ctx context.Context, seriesID int64) ([]Episode, error)

	// RequestEpisodes monitors exactly the given episodes and searches for them.
	RequestEpisodes(ctx context.Context, seriesID int64, episodes []Episode) error

	// RequestSeason monitors a season (and the series) and searches for it.
	RequestSeason(ctx context.Context, series *Series, season int) error

	// EnableFutureSeasons makes the series monitor seasons announced later.
	EnableFutureSeasons(ctx context.Context, series *Series) error

	// Probe performs a cheap reachability check.
	Probe(ctx context.Context) error
}

// Series is a snapshot of a series' state in the library service.
type Series struct {
	ID              int64
	Title           string
	TVDBID          int64
	Monitored       bool
	MonitorNewItems string
	Tags            []string
	Seasons         []Season
}

// Season returns the season numbered n, if the service knows it.
func (s *Series) Season(n int) (Season, bool) {
	for _, season := range s.Seasons {
		if season.Number == n {
			return season, true
		}
	}
	return Season{}, false
}

// HasTag reports whether label is among the series' tags.
func (s *Series) HasTag(label string) bool {
	return label != "" && slices.Contains(s.Tags, label)
}

// SeasonNumbers returns the regular (non-special) season numbers in ascending order.
func (s *Series) SeasonNumbers() []int {
	nums := make([]int, 0, len(s.Seasons))
	for _, season := range s.Seasons {
		if season.Number > 0 {
			nums = append(nums, season.Number)
		}
	}
	slices.Sort(nums)
	return nums
}

// LastSeason returns the highest regular season number, or 0.
func (s *Series) LastSeason() int {
	nums := s.SeasonNumbers()
	if len(nums) == 0 {
		return 0
	}
	return nums[len(nums)-1]
}

// Season is the state of one season. Counts are meaningless unless
// StatisticsAvailable is set.
type Season struct {
	Number              int
	Monitored           bool
	EpisodeCount        int
	DownloadedCount     int
	StatisticsAvailable bool
}

// Complete reports whether the season is known to be fully downloaded.
// Unknown statistics are never complete.
func (s Season) Complete() bool {
	return s.StatisticsAvailable && s.EpisodeCount > 0 && s.DownloadedCount >= s.EpisodeCount
}

// Episode is one episode of a series.
type Episode struct {
	ID        int64
	Season    int
	Number    int
	HasFile   bool
	Monitored bool
}

// Ref returns the episode's position.
func (e Episode) Ref() media.EpisodeRef {
	return media.EpisodeRef{Season: e.Season, Episode: e.Number}
}

// SortEpisodes orders episodes by season, then number.
func SortEpisodes(eps []Episode) {
	slices.SortFunc(eps, func(a, b Episode) int {
		if a.Season != b.Season {
			return a.Season - b.Season
		}
		return a.Number - b.Number
	})
}

// SeasonEpisodes returns the episodes belonging to season n.
func SeasonEpisodes(eps []Episode, n int) []Episode {
	var out []Episode
	for _, e := range eps {
		if e.Season == n {
			out = append(out, e)
		}
	}
	return out
}
