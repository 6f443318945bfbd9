package config

import (
	"fmt"
	"net/url"
	"time"
)

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"": true, "text": true, "json": true,
}

var validServerTypes = map[string]bool{
	TypeJellyfin: true, TypeEmby: true, TypePlex: true, TypeTautulli: true,
}

// Validate checks the configuration for errors.
// Returns a slice of error messages (empty if valid).
func (c *Config) Validate() []string {
	var errs []string

	if c.Interval < time.Second {
		errs = append(errs, fmt.Sprintf("interval: must be at least 1s, got %s", c.Interval))
	}
	if c.PrefetchNum < 1 {
		errs = append(errs, fmt.Sprintf("prefetch_num: must be at least 1, got %d", c.PrefetchNum))
	}
	if c.ConnectionRetries < 0 {
		errs = append(errs, fmt.Sprintf("connection_retries: must not be negative, got %d", c.ConnectionRetries))
	}
	if c.MaxConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("max_concurrency: must be at least 1, got %d", c.MaxConcurrency))
	}
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("log_level: must be one of debug, info, warn, error; got %q", c.LogLevel))
	}
	if !validLogFormats[c.LogFormat] {
		errs = append(errs, fmt.Sprintf("log_format: must be text or json; got %q", c.LogFormat))
	}

	// Media server
	if !validServerTypes[c.MediaServer.Type] {
		errs = append(errs, fmt.Sprintf("media_server.type: must be one of jellyfin, emby, plex, tautulli; got %q", c.MediaServer.Type))
	}
	errs = append(errs, validateURL("media_server.url", c.MediaServer.URL)...)
	if c.MediaServer.APIKey == "" {
		errs = append(errs, "media_server.api_key: required")
	}

	// Sonarr
	errs = append(errs, validateURL("sonarr.url", c.Sonarr.URL)...)
	if c.Sonarr.APIKey == "" {
		errs = append(errs, "sonarr.api_key: required")
	}
	if c.Sonarr.FuzzyMatchThreshold < 0 || c.Sonarr.FuzzyMatchThreshold > 1 {
		errs = append(errs, fmt.Sprintf("sonarr.fuzzy_match_threshold: must be between 0 and 1, got %g", c.Sonarr.FuzzyMatchThreshold))
	}
	if c.Sonarr.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Sprintf("sonarr.requests_per_second: must not be negative, got %g", c.Sonarr.RequestsPerSecond))
	}

	return errs
}

func validateURL(field, raw string) []string {
	if raw == "" {
		return []string{field + ": required"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return []string{fmt.Sprintf("%s: %v", field, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{fmt.Sprintf("%s: scheme must be http or https, got %q", field, u.Scheme)}
	}
	if u.Host == "" {
		return []string{field + ": missing host"}
	}
	return nil
}
