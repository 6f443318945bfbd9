package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmunix/prefetcharr/internal/daemon"
	"github.com/vmunix/prefetcharr/internal/probe"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the media server and Sonarr are reachable",
		Long: `Contacts every configured service once, retrying up to
connection_retries times, and prints the result. Exits non-zero when any
service is unreachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			logger, closer, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closer.Close()

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return err
			}
			results := d.Probe(cmdContext(cmd))
			printProbeResults(cmd.OutOrStdout(), results)

			var failed int
			for _, r := range results {
				if !r.OK() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d services unreachable", failed, len(results))
			}
			return nil
		},
	}
}

func printProbeResults(w io.Writer, results []probe.Result) {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		detail := ""
		if !r.OK() {
			status = "FAIL"
			detail = r.Err.Error()
			if errors.Is(r.Err, probe.ErrUnreachable) {
				status = "unreachable"
			}
		}
		rows = append(rows, []string{
			r.Name,
			status,
			strconv.Itoa(r.Attempts),
			r.Duration.Round(time.Millisecond).String(),
			detail,
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Service", "Status", "Attempts", "Time", "Error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	))
}
