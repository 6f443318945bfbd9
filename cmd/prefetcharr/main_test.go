package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/prefetcharr/internal/config"
	"github.com/vmunix/prefetcharr/internal/probe"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prefetcharr.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func serviceConfig(jellyfinURL, sonarrURL string) string {
	return fmt.Sprintf(`
interval = "1h"
log_level = "debug"

[media_server]
type = "jellyfin"
url = %q
api_key = "jf-key"

[sonarr]
url = %q
api_key = "secret"
`, jellyfinURL, sonarrURL)
}

// testServices starts a Jellyfin and a Sonarr that answer probes. The
// returned counter tracks session polls.
func testServices(t *testing.T) (jellyfin, sonarr *httptest.Server, polls *atomic.Int32) {
	t.Helper()
	polls = &atomic.Int32{}

	jf := http.NewServeMux()
	jf.HandleFunc("GET /System/Endpoint", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IsLocal":true}`))
	})
	jf.HandleFunc("GET /Sessions", func(w http.ResponseWriter, _ *http.Request) {
		polls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})
	jellyfin = httptest.NewServer(jf)
	t.Cleanup(jellyfin.Close)

	sonarr = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "secret" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"appName":"Sonarr","version":"4.0.0"}`))
	}))
	t.Cleanup(sonarr.Close)
	return jellyfin, sonarr, polls
}

func TestVersion(t *testing.T) {
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "prefetcharr dev\n", out)

	out, _, err = runCLI(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "prefetcharr dev\n", out)
}

func TestConfigValidate_Valid(t *testing.T) {
	path := writeTestConfig(t, serviceConfig("http://jellyfin:8096", "http://sonarr:8989"))

	out, _, err := runCLI(t, "config", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validating "+path)
	assert.Contains(t, out, "jellyfin (http://jellyfin:8096)")
	assert.Contains(t, out, "Interval:     1h0m0s")
	assert.Contains(t, out, "Configuration valid!")
}

func TestConfigValidate_UsesConfigFlag(t *testing.T) {
	path := writeTestConfig(t, serviceConfig("http://jellyfin:8096", "http://sonarr:8989"))

	out, _, err := runCLI(t, "--config", path, "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid!")
}

func TestConfigValidate_ListsProblems(t *testing.T) {
	path := writeTestConfig(t, `
prefetch_num = -1

[media_server]
type = "kodi"
url = "http://kodi"
api_key = "${PREFETCHARR_TEST_UNSET_KEY}"

[sonarr]
url = "http://sonarr:8989"
api_key = "secret"
`)

	out, _, err := runCLI(t, "config", "validate", path)
	require.Error(t, err)
	assert.EqualError(t, err, "configuration invalid")
	assert.Contains(t, out, "Missing environment variables:")
	assert.Contains(t, out, "PREFETCHARR_TEST_UNSET_KEY")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := runCLI(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sample configuration")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "${SONARR_API_KEY}")

	_, _, err = runCLI(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, _, err = runCLI(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestConfigInit_FromLegacyFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t,
		"--media-server-type", "emby",
		"--media-server-url", "http://emby:8096",
		"--media-server-api-key", "emby-key",
		"--sonarr-url", "http://sonarr:8989",
		"--sonarr-api-key", "sonarr-key",
		"--remaining-episodes", "5",
		"--users", "alice,bob",
		"config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "from flags")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.TypeEmby, cfg.MediaServer.Type)
	assert.Equal(t, "emby-key", cfg.MediaServer.APIKey)
	assert.Equal(t, 5, cfg.PrefetchNum)
	assert.Equal(t, 15*time.Minute, cfg.Interval)
	assert.True(t, cfg.RequestSeasons)
	assert.Equal(t, []string{"alice", "bob"}, cfg.MediaServer.Users)
}

func TestLegacyAPIKeysFromEnvironment(t *testing.T) {
	t.Setenv("MEDIA_SERVER_API_KEY", "env-media")
	t.Setenv("SONARR_API_KEY", "env-sonarr")

	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{
		"--media-server-url", "http://jellyfin:8096",
		"--sonarr-url", "http://sonarr:8989",
	}))

	// the flag defaults were read when the command was built
	flags := cmd.PersistentFlags()
	key, err := flags.GetString("media-server-api-key")
	require.NoError(t, err)
	assert.Equal(t, "env-media", key)
	key, err = flags.GetString("sonarr-api-key")
	require.NoError(t, err)
	assert.Equal(t, "env-sonarr", key)
}

func TestProbe_AllReachable(t *testing.T) {
	jellyfin, sonarr, polls := testServices(t)
	path := writeTestConfig(t, serviceConfig(jellyfin.URL, sonarr.URL))

	out, _, err := runCLI(t, "--config", path, "probe")
	require.NoError(t, err)
	assert.Contains(t, out, "sonarr")
	assert.Contains(t, out, "jellyfin")
	assert.Contains(t, out, "ok")
	assert.Zero(t, polls.Load(), "probing does not poll sessions")
}

func TestProbe_Unreachable(t *testing.T) {
	jellyfin, sonarr, _ := testServices(t)
	sonarr.Close()
	path := writeTestConfig(t, serviceConfig(jellyfin.URL, sonarr.URL))

	out, _, err := runCLI(t, "--config", path, "probe")
	require.Error(t, err)
	assert.EqualError(t, err, "1 of 2 services unreachable")
	assert.Contains(t, out, "unreachable")
}

func TestRun_UnreachableServiceFailsBeforeFirstCycle(t *testing.T) {
	jellyfin, sonarr, polls := testServices(t)
	sonarr.Close()
	path := writeTestConfig(t, serviceConfig(jellyfin.URL, sonarr.URL))

	_, stderr, err := runCLI(t, "--config", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, probe.ErrUnreachable)
	assert.Zero(t, polls.Load())
	assert.Contains(t, stderr, "loaded configuration")
}

func TestRun_MissingConfig(t *testing.T) {
	if _, err := os.Stat("/etc/prefetcharr/config.toml"); err == nil {
		t.Skip("system config present")
	}
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvConfig, "")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	_, _, err := runCLI(t)
	require.Error(t, err)
	assert.ErrorContains(t, err, "config not found")
}
