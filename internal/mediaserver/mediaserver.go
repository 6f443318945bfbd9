// Package mediaserver abstracts the playback servers prefetcharr watches.
// Each protocol lives in its own subpackage and satisfies Backend.
package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/vmunix/prefetcharr/internal/media"
)

//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks . Backend

// Sentinel errors shared by every backend.
var (
	// ErrUnreachable is returned when the server cannot be contacted or answers 5xx.
	ErrUnreachable = errors.New("media server unreachable")

	// ErrAuth is returned when the server rejects the credential.
	ErrAuth = errors.New("media server rejected credentials")

	// ErrMalformed is returned for responses that cannot be decoded at all.
	ErrMalformed = errors.New("malformed media server response")
)

// Backend lists what is currently being played.
type Backend interface {
	// Name identifies the backend in logs, e.g. "jellyfin".
	Name() string

	// ListSessions returns the TV episode sessions that pass filter.
	// A malformed individual session is skipped, never fatal to the listing.
	ListSessions(ctx context.Context, filter Filter) ([]Session, error)

	// Probe performs a cheap reachability and credential check.
	Probe(ctx context.Context) error
}

// Session is one in-progress playback of a TV episode. Season and Episode
// are nil when the server did not report them.
type Session struct {
	User    media.User
	Library string
	Series  media.SeriesIdentity
	Season  *int
	Episode *int
	Pilot   bool
}

// Position returns the session's episode position if fully known.
func (s Session) Position() (media.EpisodeRef, bool) {
	if s.Season == nil || s.Episode == nil {
		return media.EpisodeRef{}, false
	}
	return media.EpisodeRef{Season: *s.Season, Episode: *s.Episode}, true
}

// IsPilot reports whether the session is the series' first episode.
func (s Session) IsPilot() bool {
	if s.Pilot {
		return true
	}
	pos, ok := s.Position()
	return ok && pos.Season == 1 && pos.Episode == 1
}

func (s Session) String() string {
	pos := "S??E??"
	if p, ok := s.Position(); ok {
		pos = p.String()
	}
	return fmt.Sprintf("%s %s (user %s)", s.Series, pos, s.User.Name)
}

// Filter restricts which sessions are considered. Empty lists allow all.
type Filter struct {
	// Users match on id or name.
	Users []string
	// Libraries match on library name.
	Libraries []string
}

// Match reports whether the session's user and library are allowed.
// With a library allow-list set, a session of unknown library is rejected.
func (f Filter) Match(user media.User, library string) bool {
	if len(f.Users) > 0 {
		if !slices.Contains(f.Users, user.ID) && !slices.Contains(f.Users, user.Name) {
			return false
		}
	}
	if len(f.Libraries) > 0 {
		if library == "" || !slices.Contains(f.Libraries, library) {
			return false
		}
	}
	return true
}

// ClassifyStatus maps an HTTP status to the backend error taxonomy.
// It returns nil for 2xx.
func ClassifyStatus(code int, status string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == 401 || code == 403:
		return fmt.Errorf("%w: %s", ErrAuth, status)
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrUnreachable, status)
	default:
		return fmt.Errorf("unexpected response: %s", status)
	}
}

// Int returns a pointer to v, for building sessions.
func Int(v int) *int {
	return &v
}

// TrimBase normalizes a configured base URL.
func TrimBase(base string) string {
	return strings.TrimRight(base, "/")
}
