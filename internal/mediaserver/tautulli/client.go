// Package tautulli implements the session backend for Plex servers
// monitored through Tautulli.
package tautulli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/vmunix/prefetcharr/internal/media"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
)

// Client talks to the Tautulli v2 API. Tautulli only accepts its key as a
// query parameter, so request URLs must never be logged.
type Client struct {
	baseURL    string
	apiKey     string
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

// New creates a Tautulli client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    mediaserver.TrimBase(baseURL),
		apiKey:     apiKey,
		httpClient: mediaserver.NewHTTPClient(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "tautulli")
	return c
}

// Name implements mediaserver.Backend.
func (c *Client) Name() string {
	return "tautulli"
}

type activityResponse struct {
	Response *struct {
		Result  string `json:"result"`
		Message string `json:"message"`
		Data    *struct {
			Sessions json.RawMessage `json:"sessions"`
		} `json:"data"`
	} `json:"response"`
}

type session struct {
	MediaType        string                 `json:"media_type"`
	GrandparentTitle string                 `json:"grandparent_title"`
	GrandparentGUIDs []string               `json:"grandparent_guids"`
	MediaIndex       mediaserver.FlexInt    `json:"media_index"`
	ParentMediaIndex mediaserver.FlexInt    `json:"parent_media_index"`
	UserID           mediaserver.FlexString `json:"user_id"`
	Username         string                 `json:"username"`
	LibraryName      string                 `json:"library_name"`
}

func (c *Client) activity(ctx context.Context) ([]json.RawMessage, error) {
	q := url.Values{"apikey": {c.apiKey}, "cmd": {"get_activity"}}

	var resp activityResponse
	if err := mediaserver.GetJSON(ctx, c.httpClient, c.baseURL+"/api/v2?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Response == nil {
		return nil, fmt.Errorf("%w: missing response field", mediaserver.ErrMalformed)
	}
	if resp.Response.Result == "error" {
		return nil, fmt.Errorf("%w: %s", mediaserver.ErrAuth, resp.Response.Message)
	}
	if resp.Response.Data == nil {
		return nil, fmt.Errorf("%w: missing data field", mediaserver.ErrMalformed)
	}
	if len(resp.Response.Data.Sessions) == 0 || string(resp.Response.Data.Sessions) == "null" {
		return nil, nil
	}
	var sessions []json.RawMessage
	if err := json.Unmarshal(resp.Response.Data.Sessions, &sessions); err != nil {
		return nil, fmt.Errorf("%w: sessions is not an array", mediaserver.ErrMalformed)
	}
	return sessions, nil
}

// Probe implements mediaserver.Backend.
func (c *Client) Probe(ctx context.Context) error {
	if _, err := c.activity(ctx); err != nil {
		return fmt.Errorf("probing tautulli: %w", err)
	}
	return nil
}

// ListSessions implements mediaserver.Backend.
func (c *Client) ListSessions(ctx context.Context, filter mediaserver.Filter) ([]mediaserver.Session, error) {
	raw, err := c.activity(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tautulli sessions: %w", err)
	}

	var out []mediaserver.Session
	for i, r := range raw {
		var s session
		if err := json.Unmarshal(r, &s); err != nil {
			c.log.Warn("skipping Tautulli session due to deserialization error", "index", i, "error", err)
			continue
		}
		if s.MediaType != "episode" {
			c.log.Debug("ignoring non-episode playback", "type", s.MediaType)
			continue
		}
		if s.GrandparentTitle == "" || s.UserID == "" {
			c.log.Warn("skipping session with missing fields", "index", i)
			continue
		}

		u := media.User{ID: string(s.UserID), Name: s.Username}
		if !filter.Match(u, s.LibraryName) {
			c.log.Debug("session filtered out", "user", u.Name, "library", s.LibraryName)
			continue
		}

		series := media.SeriesIdentity{Title: s.GrandparentTitle}
		if id, ok := media.TVDBFromGUIDs(s.GrandparentGUIDs); ok {
			series.TVDBID = id
		}
		out = append(out, mediaserver.Session{
			User:    u,
			Library: s.LibraryName,
			Series:  series,
			Season:  s.ParentMediaIndex.Ptr(),
			Episode: s.MediaIndex.Ptr(),
		})
	}
	return out, nil
}
