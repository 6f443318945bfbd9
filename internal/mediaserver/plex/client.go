// Package plex implements the session backend for Plex Media Server.
package plex

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/vmunix/prefetcharr/internal/media"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
)

// Client talks to a Plex server.
type Client struct {
	baseURL    string
	token      string
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

// New creates a Plex client.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    mediaserver.TrimBase(baseURL),
		token:      token,
		httpClient: mediaserver.NewHTTPClient(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "plex")
	return c
}

// Name implements mediaserver.Backend.
func (c *Client) Name() string {
	return "plex"
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	h := http.Header{}
	h.Set("X-Plex-Token", c.token)
	return mediaserver.GetJSON(ctx, c.httpClient, c.baseURL+"/"+strings.TrimPrefix(path, "/"), h, out)
}

// Probe implements mediaserver.Backend.
func (c *Client) Probe(ctx context.Context) error {
	if err := c.get(ctx, "status/sessions", nil); err != nil {
		return fmt.Errorf("probing plex: %w", err)
	}
	return nil
}

type container[T any] struct {
	MediaContainer struct {
		Metadata []T `json:"Metadata"`
	} `json:"MediaContainer"`
}

type user struct {
	ID    mediaserver.FlexString `json:"id"`
	Title string                 `json:"title"`
}

type episode struct {
	Type                string              `json:"type"`
	GrandparentTitle    string              `json:"grandparentTitle"`
	GrandparentKey      string              `json:"grandparentKey"`
	Index               mediaserver.FlexInt `json:"index"`
	ParentIndex         mediaserver.FlexInt `json:"parentIndex"`
	User                *user               `json:"User"`
	LibrarySectionTitle string              `json:"librarySectionTitle"`
}

type guid struct {
	ID string `json:"id"`
}

type seriesMetadata struct {
	GUID []guid `json:"Guid"`
}

// ListSessions implements mediaserver.Backend.
func (c *Client) ListSessions(ctx context.Context, filter mediaserver.Filter) ([]mediaserver.Session, error) {
	var resp container[json.RawMessage]
	if err := c.get(ctx, "status/sessions", &resp); err != nil {
		return nil, fmt.Errorf("list plex sessions: %w", err)
	}

	var out []mediaserver.Session
	for i, raw := range resp.MediaContainer.Metadata {
		var ep episode
		if err := json.Unmarshal(raw, &ep); err != nil {
			c.log.Warn("skipping malformed session", "index", i, "error", err)
			continue
		}
		if ep.Type != "episode" {
			c.log.Debug("ignoring non-episode playback", "type", ep.Type)
			continue
		}
		if ep.User == nil || ep.GrandparentTitle == "" {
			c.log.Warn("skipping session with missing fields", "index", i)
			continue
		}

		u := media.User{ID: string(ep.User.ID), Name: ep.User.Title}
		if !filter.Match(u, ep.LibrarySectionTitle) {
			c.log.Debug("session filtered out", "user", u.Name, "library", ep.LibrarySectionTitle)
			continue
		}

		series := media.SeriesIdentity{Title: ep.GrandparentTitle}
		if id, ok := c.tvdb(ctx, ep.GrandparentKey); ok {
			series.TVDBID = id
		}
		out = append(out, mediaserver.Session{
			User:    u,
			Library: ep.LibrarySectionTitle,
			Series:  series,
			Season:  ep.ParentIndex.Ptr(),
			Episode: ep.Index.Ptr(),
		})
	}
	return out, nil
}

// tvdb looks up the series' TVDB id from its metadata guids. Failure
// falls back to title matching, so errors are only logged.
func (c *Client) tvdb(ctx context.Context, key string) (int64, bool) {
	if key == "" {
		return 0, false
	}
	var meta container[seriesMetadata]
	if err := c.get(ctx, key, &meta); err != nil {
		c.log.Debug("cannot fetch series metadata", "key", key, "error", err)
		return 0, false
	}
	if len(meta.MediaContainer.Metadata) == 0 {
		return 0, false
	}
	guids := make([]string, 0, len(meta.MediaContainer.Metadata[0].GUID))
	for _, g := range meta.MediaContainer.Metadata[0].GUID {
		guids = append(guids, g.ID)
	}
	return media.TVDBFromGUIDs(guids)
}
