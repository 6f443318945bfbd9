package config

import (
	"time"
)

// Legacy holds the pre-config-file command line options.
type Legacy struct {
	MediaServerType   string
	MediaServerURL    string
	MediaServerAPIKey string
	SonarrURL         string
	SonarrAPIKey      string
	IntervalSeconds   int
	LogDir            string
	PrefetchNum       int
	Users             []string
	Libraries         []string
	ConnectionRetries int
}

// Set reports whether legacy options were given at all.
func (l Legacy) Set() bool {
	return l.MediaServerURL != ""
}

// Config builds a validated configuration from legacy options.
func (l Legacy) Config() (*Config, error) {
	cfg := &Config{
		Interval:          time.Duration(l.IntervalSeconds) * time.Second,
		PrefetchNum:       l.PrefetchNum,
		RequestSeasons:    true,
		ConnectionRetries: l.ConnectionRetries,
		LogDir:            l.LogDir,
		MediaServer: MediaServerConfig{
			Type:      l.MediaServerType,
			URL:       l.MediaServerURL,
			APIKey:    l.MediaServerAPIKey,
			Users:     l.Users,
			Libraries: l.Libraries,
		},
		Sonarr: SonarrConfig{
			URL:    l.SonarrURL,
			APIKey: l.SonarrAPIKey,
		},
	}
	cfg.ApplyDefaults()
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, &ConfigError{Path: "flags", Errors: errs}
	}
	return cfg, nil
}
