// Package config handles TOML configuration loading with environment variable substitution.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Server types.
const (
	TypeJellyfin = "jellyfin"
	TypeEmby     = "emby"
	TypePlex     = "plex"
	TypeTautulli = "tautulli"
)

// Defaults applied after decoding.
const (
	DefaultInterval          = 15 * time.Minute
	DefaultPrefetchNum       = 2
	DefaultMaxConcurrency    = 4
	DefaultRequestsPerSecond = 5.0
	DefaultLogLevel          = "info"
)

// Config is the root configuration structure.
type Config struct {
	Interval          time.Duration `toml:"interval"`
	PrefetchNum       int           `toml:"prefetch_num"`
	RequestSeasons    bool          `toml:"request_seasons"`
	ConnectionRetries int           `toml:"connection_retries"`
	MaxConcurrency    int           `toml:"max_concurrency"`
	LogLevel          string        `toml:"log_level"`
	LogFormat         string        `toml:"log_format"`
	LogDir            string        `toml:"log_dir"`
	MetricsAddr       string        `toml:"metrics_addr"`

	MediaServer MediaServerConfig `toml:"media_server"`
	Sonarr      SonarrConfig      `toml:"sonarr"`
}

type MediaServerConfig struct {
	Type      string   `toml:"type"`
	URL       string   `toml:"url"`
	APIKey    string   `toml:"api_key"`
	Users     []string `toml:"users"`
	Libraries []string `toml:"libraries"`
}

type SonarrConfig struct {
	URL                 string  `toml:"url"`
	APIKey              string  `toml:"api_key"`
	ExcludeTag          string  `toml:"exclude_tag"`
	FuzzyMatchThreshold float64 `toml:"fuzzy_match_threshold"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
}

// Load reads, parses and validates the configuration file.
func Load(path string) (*Config, error) {
	cfg, err := LoadWithoutValidation(path)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: path, Errors: errs}
	}
	return cfg, nil
}

// LoadWithoutValidation reads and parses the configuration file and
// applies defaults, but skips Validate.
func LoadWithoutValidation(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	content, missing := substituteEnvVars(string(data))
	if len(missing) > 0 {
		return nil, &ConfigError{Path: path, Missing: missing}
	}

	cfg := Config{RequestSeasons: true}
	if _, err := toml.Decode(content, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in zero values. RequestSeasons defaults to true
// before decoding, so an explicit false survives.
func (c *Config) ApplyDefaults() {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.PrefetchNum == 0 {
		c.PrefetchNum = DefaultPrefetchNum
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Sonarr.RequestsPerSecond == 0 {
		c.Sonarr.RequestsPerSecond = DefaultRequestsPerSecond
	}
	c.MediaServer.Type = strings.ToLower(strings.TrimSpace(c.MediaServer.Type))
	c.LogLevel = strings.ToLower(c.LogLevel)
}

// substituteEnvVars replaces ${VAR}, ${VAR:-default} and ${VAR:?message}
// with environment values. Unresolved references are left in place and
// reported in missing.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?:(:-|:\?)([^}]*))?\}`)

func substituteEnvVars(content string) (string, []string) {
	var missing []string
	out := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		m := envVarPattern.FindStringSubmatch(match)
		name, op, arg := m[1], m[2], m[3]
		value, ok := os.LookupEnv(name)

		switch op {
		case ":-":
			if !ok || value == "" {
				return arg
			}
			return value
		case ":?":
			if !ok || value == "" {
				missing = append(missing, fmt.Sprintf("%s: %s", name, arg))
				return match
			}
			return value
		}
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	return out, missing
}
