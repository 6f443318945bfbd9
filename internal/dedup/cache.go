// Package dedup remembers which (series, season) pairs were recently acted
// upon so repeated playback of the same show does not re-trigger requests.
package dedup

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRetention is how long an entry suppresses repeat requests.
const DefaultRetention = 7 * 24 * time.Hour

// Key identifies a season of a library series.
type Key struct {
	SeriesID int64
	Season   int
}

// Entry is a recorded decision. Through is the highest episode number an
// episode-level request covered; zero means the whole season.
type Entry struct {
	Key
	RecordedAt time.Time
	Through    int
}

// Cache is an in-memory, mutex-guarded dedup store with lazy expiry.
// It is never persisted; a restart forgets everything.
type Cache struct {
	clock     clockwork.Clock
	retention time.Duration

	mu       sync.Mutex
	entries  map[Key]Entry
	inflight map[Key]struct{}
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the clock used for recording and expiry.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Cache) {
		c.clock = clock
	}
}

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.retention = d
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		clock:     clockwork.NewRealClock(),
		retention: DefaultRetention,
		entries:   make(map[Key]Entry),
		inflight:  make(map[Key]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AlreadyHandled reports whether any live entry exists for the season.
func (c *Cache) AlreadyHandled(seriesID int64, season int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.lookup(Key{seriesID, season})
	return ok
}

// Covers reports whether a live entry covers the season through the given
// episode. A through of zero asks for whole-season coverage.
func (c *Cache) Covers(seriesID int64, season, through int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(Key{seriesID, season})
	if !ok {
		return false
	}
	if e.Through == 0 {
		return true
	}
	return through != 0 && e.Through >= through
}

// Record marks the whole season as handled, refreshing any existing entry.
func (c *Cache) Record(seriesID int64, season int) {
	c.record(Key{seriesID, season}, 0)
}

// RecordThrough marks the season handled up to and including episode
// through. An existing whole-season entry stays whole.
func (c *Cache) RecordThrough(seriesID int64, season, through int) {
	c.record(Key{seriesID, season}, through)
}

func (c *Cache) record(k Key, through int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.pruneLocked(now)

	if prev, ok := c.entries[k]; ok && through != 0 {
		if prev.Through == 0 {
			through = 0
		} else {
			through = max(through, prev.Through)
		}
	}
	c.entries[k] = Entry{Key: k, RecordedAt: now, Through: through}
}

// Claim reserves the given seasons for one in-flight decision. It fails
// if any of them is already claimed. The returned release must be called
// once the decision has been recorded or abandoned.
func (c *Cache) Claim(seriesID int64, seasons ...int) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, len(seasons))
	for _, s := range seasons {
		k := Key{seriesID, s}
		if _, busy := c.inflight[k]; busy {
			return func() {}, false
		}
		keys = append(keys, k)
	}
	for _, k := range keys {
		c.inflight[k] = struct{}{}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for _, k := range keys {
				delete(c.inflight, k)
			}
		})
	}, true
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(c.clock.Now())
	return len(c.entries)
}

// Get returns the live entry for a season.
func (c *Cache) Get(seriesID int64, season int) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.lookup(Key{seriesID, season})
}

func (c *Cache) lookup(k Key) (Entry, bool) {
	e, ok := c.entries[k]
	if !ok {
		return Entry{}, false
	}
	if c.expired(e, c.clock.Now()) {
		delete(c.entries, k)
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) expired(e Entry, now time.Time) bool {
	return !now.Before(e.RecordedAt.Add(c.retention))
}

func (c *Cache) pruneLocked(now time.Time) {
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
		}
	}
}
