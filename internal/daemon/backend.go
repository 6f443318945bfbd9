package daemon

import (
	"fmt"
	"log/slog"

	"github.com/vmunix/prefetcharr/internal/config"
	"github.com/vmunix/prefetcharr/internal/mediaserver"
	"github.com/vmunix/prefetcharr/internal/mediaserver/embyfin"
	"github.com/vmunix/prefetcharr/internal/mediaserver/plex"
	"github.com/vmunix/prefetcharr/internal/mediaserver/tautulli"
)

// NewBackend builds the media server client named by cfg.Type.
func NewBackend(cfg config.MediaServerConfig, logger *slog.Logger) (mediaserver.Backend, error) {
	switch cfg.Type {
	case config.TypeJellyfin:
		return embyfin.New(cfg.URL, cfg.APIKey, embyfin.Jellyfin, embyfin.WithLogger(logger)), nil
	case config.TypeEmby:
		return embyfin.New(cfg.URL, cfg.APIKey, embyfin.Emby, embyfin.WithLogger(logger)), nil
	case config.TypePlex:
		return plex.New(cfg.URL, cfg.APIKey, plex.WithLogger(logger)), nil
	case config.TypeTautulli:
		return tautulli.New(cfg.URL, cfg.APIKey, tautulli.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unsupported media server type %q", cfg.Type)
	}
}
