// Package sonarr implements library.Client on top of the starr Sonarr v3
// client.
package sonarr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
	"golift.io/starr"
	"golift.io/starr/sonarr"

	"github.com/vmunix/prefetcharr/internal/library"
	"github.com/vmunix/prefetcharr/internal/media"
)

// DefaultRequestsPerSecond is the client-side request rate limit.
const DefaultRequestsPerSecond = 5

const (
	uriSeries         = "v3/series"
	uriEpisode        = "v3/episode"
	uriEpisodeMonitor = "v3/episode/monitor"
	uriTag            = "v3/tag"
	uriCommand        = "v3/command"
)

// Client is a Sonarr API v3 client. The API key travels only in the
// X-Api-Key header.
type Client struct {
	api        *sonarr.Sonarr
	httpClient *http.Client
	limiter    *rate.Limiter
	fuzzy      float64
	log        *slog.Logger

	mu     sync.RWMutex
	labels map[int64]string
}

var _ library.Client = (*Client)(nil)

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

// WithRateLimit caps requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
	}
}

// WithFuzzyThreshold enables Jaro-Winkler title fallback at the given
// similarity threshold (0-1).
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Client) {
		c.fuzzy = threshold
	}
}

// New creates a Sonarr client.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultRequestsPerSecond),
		log:     slog.Default(),
		labels:  make(map[int64]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With("component", "sonarr")

	hc := *c.httpClient
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	hc.Transport = &limitedTransport{next: next, limiter: c.limiter, log: c.log}

	c.api = sonarr.New(&starr.Config{
		URL:    strings.TrimRight(baseURL, "/"),
		APIKey: apiKey,
		Client: &hc,
	})
	return c
}

// limitedTransport waits on the shared limiter before every request and
// logs the exchange at debug level.
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	log     *slog.Logger
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.log.Debug("sonarr request", "method", req.Method, "path", req.URL.Path, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// apiError maps starr failures onto this package's sentinels. Rejected
// keys never echo the request back.
func apiError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var reqErr *starr.ReqError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Code == http.StatusUnauthorized || reqErr.Code == http.StatusForbidden:
			return ErrUnauthorized
		case reqErr.Code >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %d %s", ErrUnavailable, reqErr.Code, http.StatusText(reqErr.Code))
		}
		return err
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, uerr.Err)
	}
	return err
}

// records fetches a JSON array without decoding its elements, so one
// malformed record can be skipped instead of failing the listing.
func (c *Client) records(ctx context.Context, uri string, query url.Values) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := c.api.GetInto(ctx, starr.Request{URI: uri, Query: query}, &raw); err != nil {
		return nil, apiError(ctx, err)
	}
	return raw, nil
}

func (c *Client) send(ctx context.Context, method, uri string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req := starr.Request{URI: uri, Body: bytes.NewReader(b)}
	switch method {
	case http.MethodPut:
		err = c.api.PutInto(ctx, req, out)
	default:
		err = c.api.PostInto(ctx, req, out)
	}
	if err != nil {
		return apiError(ctx, err)
	}
	return nil
}

// Probe checks that Sonarr answers and accepts the key.
func (c *Client) Probe(ctx context.Context) error {
	status, err := c.api.GetSystemStatusContext(ctx)
	if err != nil {
		return fmt.Errorf("probing sonarr: %w", apiError(ctx, err))
	}
	c.log.Debug("sonarr reachable", "version", status.Version)
	return nil
}

// listSeries returns every well-formed series; malformed entries are skipped.
func (c *Client) listSeries(ctx context.Context) ([]seriesRecord, error) {
	raw, err := c.records(ctx, uriSeries, nil)
	if err != nil {
		return nil, fmt.Errorf("list series: %w", err)
	}
	out := make([]seriesRecord, 0, len(raw))
	for _, r := range raw {
		s, err := decodeSeries(r)
		if err != nil {
			c.log.Debug("ignoring malformed series entry", "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// FindSeries implements library.Client. An identity carrying a TVDB id is
// matched by id alone; the title is consulted only when there is no id.
func (c *Client) FindSeries(ctx context.Context, id media.SeriesIdentity) (*library.Series, error) {
	all, err := c.listSeries(ctx)
	if err != nil {
		return nil, err
	}

	var found *seriesRecord
	if id.HasExternalID() {
		for i := range all {
			if all[i].TvdbID == id.TVDBID {
				found = &all[i]
				break
			}
		}
	} else if id.Title != "" {
		candidates := make([]library.Series, len(all))
		for i, s := range all {
			candidates[i] = library.Series{ID: s.ID, Title: s.Title}
		}
		if m, ok := library.MatchTitle(candidates, id.Title, c.fuzzy); ok {
			for i := range all {
				if all[i].ID == m.ID {
					found = &all[i]
					break
				}
			}
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%w: %s", library.ErrSeriesNotFound, id)
	}

	labels, err := c.tagLabels(ctx, found.tagIDs())
	if err != nil {
		return nil, fmt.Errorf("resolve tags of %q: %w", found.Title, err)
	}
	return found.toLibrary(labels), nil
}

// Episodes implements library.Client.
func (c *Client) Episodes(ctx context.Context, seriesID int64) ([]library.Episode, error) {
	eps, err := c.episodes(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	out := make([]library.Episode, 0, len(eps))
	for _, e := range eps {
		out = append(out, episodeToLibrary(e))
	}
	library.SortEpisodes(out)
	return out, nil
}

func (c *Client) episodes(ctx context.Context, seriesID int64) ([]*sonarr.Episode, error) {
	q := url.Values{"seriesId": {strconv.FormatInt(seriesID, 10)}}
	raw, err := c.records(ctx, uriEpisode, q)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	out := make([]*sonarr.Episode, 0, len(raw))
	for _, r := range raw {
		var e sonarr.Episode
		if err := json.Unmarshal(r, &e); err != nil || e.ID == 0 {
			c.log.Debug("ignoring malformed episode entry", "error", err)
			continue
		}
		out = append(out, &e)
	}
	return out, nil
}

// RequestEpisodes implements library.Client.
func (c *Client) RequestEpisodes(ctx context.Context, seriesID int64, episodes []library.Episode) error {
	if len(episodes) == 0 {
		return nil
	}
	ids := make([]int64, len(episodes))
	for i, e := range episodes {
		ids[i] = e.ID
	}
	c.log.Info("searching episodes", "series_id", seriesID, "episode_ids", ids)

	if err := c.monitorEpisodes(ctx, ids); err != nil {
		return acquisitionError(err)
	}
	resp, err := c.api.SendCommandContext(ctx, &sonarr.CommandRequest{
		Name:       "EpisodeSearch",
		EpisodeIDs: ids,
	})
	if err != nil {
		return acquisitionError(fmt.Errorf("command EpisodeSearch: %w", apiError(ctx, err)))
	}
	c.log.Debug("episode search queued", "series_id", seriesID, "command_id", resp.ID)
	return nil
}

// RequestSeason implements library.Client. If the season is already
// monitored its episodes are monitored explicitly, since Sonarr's season
// search skips unmonitored episodes.
func (c *Client) RequestSeason(ctx context.Context, series *library.Series, season int) error {
	state, ok := series.Season(season)
	if !ok {
		return fmt.Errorf("%w: season %d of %q", library.ErrSeasonUnknown, season, series.Title)
	}
	c.log.Info("searching season", "series", series.Title, "season", season)

	if state.Monitored {
		eps, err := c.episodes(ctx, series.ID)
		if err != nil {
			return acquisitionError(err)
		}
		var ids []int64
		for _, e := range eps {
			if e.SeasonNumber == season {
				ids = append(ids, e.ID)
			}
		}
		if len(ids) > 0 {
			if err := c.monitorEpisodes(ctx, ids); err != nil {
				return acquisitionError(err)
			}
		}
	}

	if !state.Monitored || !series.Monitored {
		err := c.updateSeries(ctx, series.ID, func(doc map[string]any) {
			doc["monitored"] = true
			setSeasonMonitored(doc, season)
		})
		if err != nil {
			return acquisitionError(err)
		}
	}

	// seasonNumber is sent even for season 0, so the body is built here
	cmd := seasonSearchCommand{Name: "SeasonSearch", SeriesID: series.ID, SeasonNumber: season}
	var resp commandResponse
	if err := c.send(ctx, http.MethodPost, uriCommand, cmd, &resp); err != nil {
		return acquisitionError(fmt.Errorf("command SeasonSearch: %w", err))
	}
	c.log.Debug("season search queued", "series_id", series.ID, "command_id", resp.ID)
	return nil
}

// EnableFutureSeasons implements library.Client.
func (c *Client) EnableFutureSeasons(ctx context.Context, series *library.Series) error {
	c.log.Info("monitoring new seasons", "series", series.Title)
	err := c.updateSeries(ctx, series.ID, func(doc map[string]any) {
		doc["monitored"] = true
		doc["monitorNewItems"] = "all"
	})
	if err != nil {
		return acquisitionError(err)
	}
	return nil
}

// updateSeries fetches the full series document, applies edit and PUTs it
// back, so fields this client does not model survive the round trip.
func (c *Client) updateSeries(ctx context.Context, seriesID int64, edit func(map[string]any)) error {
	uri := path.Join(uriSeries, strconv.FormatInt(seriesID, 10))

	var raw json.RawMessage
	if err := c.api.GetInto(ctx, starr.Request{URI: uri}, &raw); err != nil {
		return fmt.Errorf("get series: %w", apiError(ctx, err))
	}
	var doc map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("decode series %d: %w", seriesID, err)
	}

	edit(doc)
	var updated json.RawMessage
	if err := c.send(ctx, http.MethodPut, uri, doc, &updated); err != nil {
		return fmt.Errorf("put series: %w", err)
	}
	return nil
}

func setSeasonMonitored(doc map[string]any, season int) {
	seasons, _ := doc["seasons"].([]any)
	for _, s := range seasons {
		m, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if n, ok := m["seasonNumber"].(json.Number); ok && n.String() == strconv.Itoa(season) {
			m["monitored"] = true
		}
	}
}

func (c *Client) monitorEpisodes(ctx context.Context, ids []int64) error {
	req := episodeMonitorRequest{EpisodeIDs: ids, Monitored: true}
	var updated []json.RawMessage
	if err := c.send(ctx, http.MethodPut, uriEpisodeMonitor, req, &updated); err != nil {
		return fmt.Errorf("monitor episodes: %w", err)
	}
	return nil
}

func acquisitionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", library.ErrAcquisitionFailed, err)
}
