// Package media holds the value types shared between the media-server
// backends and the library service.
package media

import (
	"fmt"
	"strconv"
	"strings"
)

// SeriesIdentity names a series the way a media server reports it.
// A non-zero TVDBID is authoritative; Title is only a fallback.
type SeriesIdentity struct {
	TVDBID int64
	Title  string
}

// HasExternalID reports whether the identity carries a TVDB id.
func (s SeriesIdentity) HasExternalID() bool {
	return s.TVDBID != 0
}

func (s SeriesIdentity) String() string {
	if s.HasExternalID() {
		return fmt.Sprintf("tvdb:%d", s.TVDBID)
	}
	return fmt.Sprintf("title:%q", s.Title)
}

// User is the viewer of a playback session.
type User struct {
	ID   string
	Name string
}

// EpisodeRef addresses an episode by its position.
type EpisodeRef struct {
	Season  int
	Episode int
}

func (e EpisodeRef) String() string {
	return fmt.Sprintf("S%02dE%02d", e.Season, e.Episode)
}

// Less orders episode refs by season, then episode.
func (e EpisodeRef) Less(o EpisodeRef) bool {
	if e.Season != o.Season {
		return e.Season < o.Season
	}
	return e.Episode < o.Episode
}

// ParseProviderGUID extracts the TVDB id from a provider guid such as
// "tvdb://1234". Other providers and malformed values return false.
func ParseProviderGUID(guid string) (int64, bool) {
	provider, id, ok := strings.Cut(guid, "://")
	if !ok || provider != "tvdb" {
		return 0, false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// TVDBFromGUIDs returns the first TVDB id found in guids.
func TVDBFromGUIDs(guids []string) (int64, bool) {
	for _, g := range guids {
		if id, ok := ParseProviderGUID(g); ok {
			return id, true
		}
	}
	return 0, false
}
