package tautulli

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mockTautulli(t *testing.T, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2" || r.URL.Query().Get("cmd") != "get_activity" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.URL.Query().Get("apikey") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			panic("test: failed to encode JSON: " + err.Error())
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func activity(sessions any) map[string]any {
	return map[string]any{
		"response": map[string]any{
			"result": "success",
			"data":   map[string]any{"stream_count": "1", "sessions": sessions},
		},
	}
}

func episode() map[string]any {
	return map[string]any{
		"grandparent_title":  "Test Show",
		"grandparent_guids":  []string{"imdb://tt1", "tvdb://1234"},
		"media_index":        "5",
		"parent_media_index": 3,
		"media_type":         "episode",
		"user_id":            1,
		"username":           "user",
		"library_name":       "TV Shows",
	}
}

func TestListSessions(t *testing.T) {
	srv := mockTautulli(t, activity([]any{episode()}))
	c := New(srv.URL, "secret", WithLogger(testLogger()))

	sessions, err := c.ListSessions(context.Background(), mediaserver.Filter{})

	require.NoError(t, err)
	require.Len(t, sessions, 1)
	s := sessions[0]
	assert.Equal(t, int64(1234), s.Series.TVDBID)
	assert.Equal(t, 3, *s.Season)
	assert.Equal(t, 5, *s.Episode)
	assert.Equal(t, "1", s.User.ID)
	assert.Equal(t, "user", s.User.Name)
	assert.Equal(t, "TV Shows", s.Library)
}

func TestListSessions_TitleFallbackAndSkips(t *testing.T) {
	noGUID := episode()
	noGUID["grandparent_guids"] = []string{}
	track := map[string]any{"media_type": "track", "user_id": 1}
	broken := episode()
	broken["media_index"] = "five"

	srv := mockTautulli(t, activity([]any{track, broken, noGUID}))
	c := New(srv.URL, "secret", WithLogger(testLogger()))

	sessions, err := c.ListSessions(context.Background(), mediaserver.Filter{})

	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Zero(t, sessions[0].Series.TVDBID)
	assert.Equal(t, "Test Show", sessions[0].Series.Title)
}

func TestListSessions_NoSessionsField(t *testing.T) {
	srv := mockTautulli(t, map[string]any{
		"response": map[string]any{"result": "success", "data": map[string]any{}},
	})
	c := New(srv.URL, "secret", WithLogger(testLogger()))

	sessions, err := c.ListSessions(context.Background(), mediaserver.Filter{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestListSessions_MalformedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing response", map[string]any{}},
		{"missing data", map[string]any{"response": map[string]any{"result": "success"}}},
		{"sessions not array", activity("nope")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockTautulli(t, tt.body)
			c := New(srv.URL, "secret", WithLogger(testLogger()))

			_, err := c.ListSessions(context.Background(), mediaserver.Filter{})
			assert.ErrorIs(t, err, mediaserver.ErrMalformed)
		})
	}
}

func TestProbe(t *testing.T) {
	srv := mockTautulli(t, activity([]any{}))

	assert.NoError(t, New(srv.URL, "secret", WithLogger(testLogger())).Probe(context.Background()))

	err := New(srv.URL, "wrong", WithLogger(testLogger())).Probe(context.Background())
	assert.ErrorIs(t, err, mediaserver.ErrAuth)
	assert.NotContains(t, err.Error(), "wrong", "api key must not leak into errors")
}
