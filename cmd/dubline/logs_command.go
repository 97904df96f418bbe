package main

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"dubline/internal/logging"
	"dubline/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow bool
		lines  int
		raw    bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display the dubline log, optionally for one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Paths.LogDir == "" {
				return errors.New("paths.log_dir is empty; no log file is written")
			}
			path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
			out := cmd.OutOrStdout()
			emit := func(line string) {
				if !raw {
					line = logs.Render(line)
				}
				fmt.Fprintln(out, line)
			}

			limit := lines
			if limit < 0 {
				limit = 0
			}
			result, err := logs.Tail(path, logs.TailOptions{Limit: limit, Filter: filter})
			if err != nil {
				return err
			}
			for _, line := range result.Lines {
				emit(line)
			}
			if !follow {
				if len(result.Lines) == 0 {
					fmt.Fprintln(out, "No log entries available")
				}
				return nil
			}

			followCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := logs.Follow(followCtx, path, result.Offset, filter, emit); err != nil && followCtx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of matching lines to show")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only show records for this run ID or prefix")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level to show (debug, info, warn, error)")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON records unchanged")
	return cmd
}
