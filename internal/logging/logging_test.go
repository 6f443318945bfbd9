package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNew_JSONWhenNotTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "info", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.Info("cycle finished", "sessions", 2)
	logger.Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "cycle finished", rec["msg"])
	assert.EqualValues(t, 2, rec["sessions"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "debug", Format: "text", Output: &buf})
	require.NoError(t, err)

	logger.Debug("probing", "service", "sonarr")
	assert.Contains(t, buf.String(), "msg=probing service=sonarr")
}

func TestNew_UnsupportedFormat(t *testing.T) {
	_, _, err := New(Options{Format: "xml", Output: &bytes.Buffer{}})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var buf bytes.Buffer
	logger, closer, err := New(Options{Format: "json", Dir: dir, Output: &buf})
	require.NoError(t, err)

	logger.Warn("series not found", "series", "tvdb:1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "series not found")
	assert.Contains(t, buf.String(), "series not found")
}
