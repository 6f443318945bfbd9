// Package embyfin implements the session backend for Jellyfin and Emby,
// which share one API and differ only in how the token is sent.
package embyfin

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vmunix/prefetcharr/internal/media"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
)

// Fork selects the server flavor.
type Fork int

const (
	Jellyfin Fork = iota
	Emby
)

func (f Fork) String() string {
	if f == Emby {
		return "emby"
	}
	return "jellyfin"
}

// Client talks to a Jellyfin or Emby server.
type Client struct {
	baseURL    string
	apiKey     string
	fork       Fork
	httpClient *http.Client
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a client for the given fork.
func New(baseURL, apiKey string, fork Fork, opts ...Option) *Client {
	c := &Client{
		baseURL:    mediaserver.TrimBase(baseURL),
		apiKey:     apiKey,
		fork:       fork,
		httpClient: mediaserver.NewHTTPClient(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", fork.String())
	return c
}

// Name implements mediaserver.Backend.
func (c *Client) Name() string {
	return c.fork.String()
}

func (c *Client) header() http.Header {
	h := http.Header{}
	switch c.fork {
	case Emby:
		h.Set("X-Emby-Token", c.apiKey)
	default:
		h.Set("Authorization", fmt.Sprintf("MediaBrowser Token=%q", c.apiKey))
	}
	return h
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return mediaserver.GetJSON(ctx, c.httpClient, c.baseURL+"/"+path, c.header(), out)
}

// Probe implements mediaserver.Backend.
func (c *Client) Probe(ctx context.Context) error {
	if err := c.get(ctx, "System/Endpoint", nil); err != nil {
		return fmt.Errorf("probing %s: %w", c.fork, err)
	}
	return nil
}

type sessionInfo struct {
	UserID         string       `json:"UserId"`
	UserName       string       `json:"UserName"`
	NowPlayingItem *playingItem `json:"NowPlayingItem"`
}

type playingItem struct {
	Type        string `json:"Type"`
	SeriesID    string `json:"SeriesId"`
	SeasonID    string `json:"SeasonId"`
	IndexNumber *int   `json:"IndexNumber"`
	Path        string `json:"Path"`
}

type seriesItem struct {
	Name        string            `json:"Name"`
	ProviderIDs map[string]string `json:"ProviderIds"`
}

type seasonItem struct {
	IndexNumber *int `json:"IndexNumber"`
}

type virtualFolder struct {
	Name      string   `json:"Name"`
	Locations []string `json:"Locations"`
}

// ListSessions implements mediaserver.Backend.
func (c *Client) ListSessions(ctx context.Context, filter mediaserver.Filter) ([]mediaserver.Session, error) {
	var raw []json.RawMessage
	if err := c.get(ctx, "Sessions", &raw); err != nil {
		return nil, fmt.Errorf("list %s sessions: %w", c.fork, err)
	}

	var (
		folders       []virtualFolder
		foldersLoaded bool
		out           []mediaserver.Session
	)
	for i, r := range raw {
		var info sessionInfo
		if err := json.Unmarshal(r, &info); err != nil {
			c.log.Warn("skipping malformed session", "index", i, "error", err)
			continue
		}
		item := info.NowPlayingItem
		if item == nil {
			continue
		}
		if item.SeriesID == "" || (item.Type != "" && item.Type != "Episode") {
			c.log.Debug("ignoring non-episode playback", "user", info.UserName, "type", item.Type)
			continue
		}
		user := media.User{ID: info.UserID, Name: info.UserName}
		if info.UserID == "" {
			c.log.Warn("skipping session without user", "index", i)
			continue
		}

		if !foldersLoaded && len(filter.Libraries) > 0 {
			if err := c.get(ctx, "Library/VirtualFolders", &folders); err != nil {
				c.log.Warn("cannot list libraries", "error", err)
			}
			foldersLoaded = true
		}
		library := libraryFor(folders, item.Path)
		if !filter.Match(user, library) {
			c.log.Debug("session filtered out", "user", user.Name, "library", library)
			continue
		}

		session, err := c.resolve(ctx, user, library, item)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.log.Warn("skipping session", "user", user.Name, "error", err)
			continue
		}
		out = append(out, session)
	}
	return out, nil
}

func (c *Client) resolve(ctx context.Context, user media.User, library string, item *playingItem) (mediaserver.Session, error) {
	var series seriesItem
	if err := c.get(ctx, c.itemPath(user.ID, item.SeriesID), &series); err != nil {
		return mediaserver.Session{}, fmt.Errorf("fetch series: %w", err)
	}

	session := mediaserver.Session{
		User:    user,
		Library: library,
		Series:  media.SeriesIdentity{Title: series.Name},
		Episode: item.IndexNumber,
	}
	if tvdb, ok := series.ProviderIDs["Tvdb"]; ok {
		id, err := strconv.ParseInt(tvdb, 10, 64)
		if err != nil {
			return mediaserver.Session{}, fmt.Errorf("%w: tvdb id %q", mediaserver.ErrMalformed, tvdb)
		}
		session.Series.TVDBID = id
	}
	if session.Series.TVDBID == 0 && session.Series.Title == "" {
		return mediaserver.Session{}, fmt.Errorf("%w: series has neither tvdb id nor name", mediaserver.ErrMalformed)
	}

	if item.SeasonID != "" {
		var season seasonItem
		if err := c.get(ctx, c.itemPath(user.ID, item.SeasonID), &season); err != nil {
			return mediaserver.Session{}, fmt.Errorf("fetch season: %w", err)
		}
		session.Season = season.IndexNumber
	}
	return session, nil
}

func (c *Client) itemPath(userID, itemID string) string {
	return "Users/" + url.PathEscape(userID) + "/Items/" + url.PathEscape(itemID)
}

// libraryFor returns the virtual folder whose location contains path.
func libraryFor(folders []virtualFolder, path string) string {
	if path == "" {
		return ""
	}
	for _, f := range folders {
		for _, loc := range f.Locations {
			if loc != "" && strings.HasPrefix(path, loc) {
				return f.Name
			}
		}
	}
	return ""
}
