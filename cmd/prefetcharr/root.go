package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:   "prefetcharr",
		Short: "Prefetch upcoming episodes of the series people are watching",
		Long: `prefetcharr polls a media server for active playback and asks Sonarr
to search for the next episodes before the viewer gets there.

Supported media servers: Jellyfin, Emby, Plex and Tautulli.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd, ctx)
		},
	}
	rootCmd.SetVersionTemplate("prefetcharr {{.Version}}\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path")

	// Pre-config-file flags. --media-server-url switches them on.
	l := &ctx.legacy
	flags.StringVar(&l.MediaServerType, "media-server-type", "jellyfin", "Media server type (jellyfin, emby, plex, tautulli)")
	flags.StringVar(&l.MediaServerURL, "media-server-url", "", "Media server URL")
	flags.StringVar(&l.MediaServerAPIKey, "media-server-api-key", os.Getenv("MEDIA_SERVER_API_KEY"), "Media server API key [env MEDIA_SERVER_API_KEY]")
	flags.StringVar(&l.SonarrURL, "sonarr-url", "", "Sonarr URL")
	flags.StringVar(&l.SonarrAPIKey, "sonarr-api-key", os.Getenv("SONARR_API_KEY"), "Sonarr API key [env SONARR_API_KEY]")
	flags.IntVar(&l.IntervalSeconds, "interval", 900, "Polling interval in seconds")
	flags.StringVar(&l.LogDir, "log-dir", "", "Directory for a rolling log file")
	flags.IntVar(&l.PrefetchNum, "prefetch-num", 2, "Number of episodes to keep ahead of the viewer")
	flags.StringSliceVar(&l.Users, "users", nil, "Only consider these users (ids or names)")
	flags.StringSliceVar(&l.Libraries, "libraries", nil, "Only consider these libraries")
	flags.IntVar(&l.ConnectionRetries, "connection-retries", 0, "Extra connection attempts at startup")
	for _, name := range legacyFlags {
		_ = flags.MarkHidden(name)
	}
	rootCmd.SetGlobalNormalizationFunc(normalizeFlag)

	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

var legacyFlags = []string{
	"media-server-type", "media-server-url", "media-server-api-key",
	"sonarr-url", "sonarr-api-key", "interval", "log-dir", "prefetch-num",
	"users", "libraries", "connection-retries",
}

// normalizeFlag keeps the old --remaining-episodes spelling working.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if strings.EqualFold(name, "remaining-episodes") {
		name = "prefetch-num"
	}
	return pflag.NormalizedName(name)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "prefetcharr %s\n", version)
		},
	}
}
