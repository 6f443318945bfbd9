package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vmunix/prefetcharr/internal/daemon"
)

func runDaemon(cmd *cobra.Command, ctx *commandContext) error {
	signalCtx, cancel := signal.NotifyContext(cmdContext(cmd), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, source, err := ctx.loadConfig()
	if err != nil {
		return err
	}

	logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer closer.Close()

	if source == "flags" {
		logger.Warn("command line configuration is deprecated, move it to a config file (see 'prefetcharr config init')")
	} else {
		logger.Info("loaded configuration", "path", source)
	}

	d, err := daemon.New(cfg, logger)
	if err != nil {
		return err
	}
	return d.Run(signalCtx)
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
