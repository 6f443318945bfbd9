package reconcile

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vmunix/prefetcharr/internal/library"
	"github.com/vmunix/prefetcharr/internal/media"
)

// lookups memoizes library reads for the duration of one cycle, so that
// several viewers of the same series cost one round trip.
type lookups struct {
	client library.Client
	group  singleflight.Group

	mu       sync.Mutex
	series   map[media.SeriesIdentity]seriesResult
	episodes map[int64]episodesResult
}

type seriesResult struct {
	series *library.Series
	err    error
}

type episodesResult struct {
	episodes []library.Episode
	err      error
}

func newLookups(client library.Client) *lookups {
	return &lookups{
		client:   client,
		series:   make(map[media.SeriesIdentity]seriesResult),
		episodes: make(map[int64]episodesResult),
	}
}

func (l *lookups) findSeries(ctx context.Context, id media.SeriesIdentity) (*library.Series, error) {
	l.mu.Lock()
	if r, ok := l.series[id]; ok {
		l.mu.Unlock()
		return r.series, r.err
	}
	l.mu.Unlock()

	v, _, _ := l.group.Do("series:"+id.String(), func() (any, error) {
		l.mu.Lock()
		r, ok := l.series[id]
		l.mu.Unlock()
		if ok {
			return r, nil
		}
		s, err := l.client.FindSeries(ctx, id)
		r = seriesResult{series: s, err: err}
		if ctx.Err() == nil {
			l.mu.Lock()
			l.series[id] = r
			l.mu.Unlock()
		}
		return r, nil
	})
	r := v.(seriesResult)
	return r.series, r.err
}

func (l *lookups) listEpisodes(ctx context.Context, seriesID int64) ([]library.Episode, error) {
	l.mu.Lock()
	if r, ok := l.episodes[seriesID]; ok {
		l.mu.Unlock()
		return r.episodes, r.err
	}
	l.mu.Unlock()

	v, _, _ := l.group.Do("episodes:"+strconv.FormatInt(seriesID, 10), func() (any, error) {
		l.mu.Lock()
		r, ok := l.episodes[seriesID]
		l.mu.Unlock()
		if ok {
			return r, nil
		}
		eps, err := l.client.Episodes(ctx, seriesID)
		r = episodesResult{episodes: eps, err: err}
		if ctx.Err() == nil {
			l.mu.Lock()
			l.episodes[seriesID] = r
			l.mu.Unlock()
		}
		return r, nil
	})
	r := v.(episodesResult)
	return r.episodes, r.err
}

// forget drops memoized state for a series after it was modified.
func (l *lookups) forget(seriesID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.episodes, seriesID)
	for id, r := range l.series {
		if r.series != nil && r.series.ID == seriesID {
			delete(l.series, id)
		}
	}
}
