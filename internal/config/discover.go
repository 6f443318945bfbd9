package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvConfig names the environment variable that points at the config file.
const EnvConfig = "PREFETCHARR_CONFIG"

// DefaultPath returns the XDG-compliant default config path.
func DefaultPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "./prefetcharr.toml"
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "prefetcharr", "config.toml")
}

// Discover finds the config file using the standard search order.
// Search order:
//  1. PREFETCHARR_CONFIG environment variable
//  2. ./prefetcharr.toml (current directory)
//  3. $XDG_CONFIG_HOME/prefetcharr/config.toml
//  4. /etc/prefetcharr/config.toml
func Discover() (string, error) {
	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return "", fmt.Errorf("%s=%s: %w", EnvConfig, envPath, err)
		}
		return envPath, nil
	}

	paths := []string{
		"./prefetcharr.toml",
		DefaultPath(),
		"/etc/prefetcharr/config.toml",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("config not found, checked: %s", strings.Join(paths, ", "))
}
