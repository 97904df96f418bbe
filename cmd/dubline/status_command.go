package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dubline/internal/checkpoint"
	"dubline/internal/pipeline"
	"dubline/internal/services"
)

type statusView struct {
	pipeline.Report
	Progress  progress `json:"progress"`
	UpdatedAt string   `json:"updated_at"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the checkpoint in the work directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store := checkpoint.NewStore(cfg.Paths.WorkDir)
			st, err := store.Load()
			if errors.Is(err, services.ErrCheckpointCorrupt) {
				return fmt.Errorf("%w (the next run archives it and starts over)", err)
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if st == nil {
				fmt.Fprintf(out, "No checkpoint in %s\n", cfg.Paths.WorkDir)
				return nil
			}

			report := pipeline.Summarize(st, cfg.Reconcile.Epsilon())
			report.WorkDir = cfg.Paths.WorkDir
			view := statusView{
				Report:    report,
				Progress:  stateProgress(st),
				UpdatedAt: st.UpdatedAt.Format("2006-01-02 15:04:05 MST"),
			}
			if jsonOutput {
				return writeJSON(cmd, view)
			}

			colorize := shouldColorize(out)
			writeLines(out, renderSectionHeader("Checkpoint "+st.RunID, colorize)...)
			stageKind := statusInfo
			if report.Complete() {
				stageKind = statusOK
			}
			writeLines(out,
				renderStatusLine("Stage", stageKind, string(st.Stage), colorize),
				renderStatusLine("Updated", statusInfo, view.UpdatedAt, colorize),
				renderStatusLine("Chunks", statusInfo, strconv.Itoa(view.Progress.Total), colorize),
				renderStatusLine("Translated", progressKind(view.Progress.Translated, view.Progress.Total), progressText(view.Progress.Translated, view.Progress.Total), colorize),
				renderStatusLine("Synthesized", progressKind(view.Progress.Synthesized, view.Progress.Total), progressText(view.Progress.Synthesized, view.Progress.Total), colorize),
				renderStatusLine("Reconciled", progressKind(view.Progress.Reconciled, view.Progress.Total), progressText(view.Progress.Reconciled, view.Progress.Total), colorize),
			)
			if report.TrackPath != "" {
				writeLines(out, renderStatusLine("Track", statusOK, report.TrackPath, colorize))
			}
			if report.OutputPath != "" {
				writeLines(out, renderStatusLine("Output", statusOK, report.OutputPath, colorize))
			}
			if report.LastError != "" {
				writeLines(out, renderStatusLine("Last error", statusError, report.LastError, colorize))
			}
			renderChunkTables(out, report, colorize)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the checkpoint summary as JSON")
	return cmd
}

func progressKind(done, total int) statusKind {
	if total > 0 && done >= total {
		return statusOK
	}
	return statusInfo
}

func progressText(done, total int) string {
	return fmt.Sprintf("%d/%d", done, total)
}
