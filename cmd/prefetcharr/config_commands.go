package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vmunix/prefetcharr/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand(ctx))
	return configCmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate configuration file",
		Long:  "Checks TOML syntax, required fields and environment variable substitution without contacting any service.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			var (
				cfg    *config.Config
				source string
				err    error
			)
			if len(args) > 0 {
				source = args[0]
				cfg, err = config.Load(source)
			} else {
				cfg, source, err = ctx.loadConfig()
			}
			if source != "" {
				fmt.Fprintf(out, "Validating %s...\n\n", source)
			}
			if err != nil {
				var configErr *config.ConfigError
				if errors.As(err, &configErr) {
					printConfigErrors(out, configErr)
					return errors.New("configuration invalid")
				}
				return fmt.Errorf("failed to load config: %w", err)
			}

			printConfigSummary(out, cfg)
			fmt.Fprintln(out, "\nConfiguration valid!")
			return nil
		},
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a sample configuration file",
		Long: `Writes a commented sample configuration. When legacy command line
flags are given, their values are written instead, which migrates an
existing flag-based setup to a config file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}

			if ctx.legacy.Set() {
				cfg, err := ctx.legacy.Config()
				if err != nil {
					return err
				}
				if err := cfg.Write(path); err != nil {
					return fmt.Errorf("write config: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote configuration from flags to %s\n", path)
				return nil
			}

			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func printConfigErrors(w io.Writer, e *config.ConfigError) {
	if len(e.Missing) > 0 {
		fmt.Fprintln(w, "Missing environment variables:")
		for _, m := range e.Missing {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		fmt.Fprintln(w)
	}

	if len(e.Errors) > 0 {
		fmt.Fprintln(w, "Validation errors:")
		for _, err := range e.Errors {
			fmt.Fprintf(w, "  - %s\n", err)
		}
		fmt.Fprintln(w)
	}
}

func printConfigSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Configuration Summary:")
	fmt.Fprintf(w, "  Media server: %s (%s)\n", cfg.MediaServer.Type, cfg.MediaServer.URL)
	fmt.Fprintf(w, "  Sonarr:       %s\n", cfg.Sonarr.URL)
	fmt.Fprintf(w, "  Interval:     %s\n", cfg.Interval)

	mode := "episodes"
	if cfg.RequestSeasons {
		mode = "seasons"
	}
	fmt.Fprintf(w, "  Prefetch:     %d (%s)\n", cfg.PrefetchNum, mode)

	if len(cfg.MediaServer.Users) > 0 {
		fmt.Fprintf(w, "  Users:        %s\n", strings.Join(cfg.MediaServer.Users, ", "))
	}
	if len(cfg.MediaServer.Libraries) > 0 {
		fmt.Fprintf(w, "  Libraries:    %s\n", strings.Join(cfg.MediaServer.Libraries, ", "))
	}
	if cfg.Sonarr.ExcludeTag != "" {
		fmt.Fprintf(w, "  Exclude tag:  %s\n", cfg.Sonarr.ExcludeTag)
	}
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "  Metrics:      %s\n", cfg.MetricsAddr)
	}
}
