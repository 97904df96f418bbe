package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dubline/internal/config"
	"dubline/internal/ledger"
	"dubline/internal/services"
	"dubline/internal/transcript"
)

type runView struct {
	RunID             string        `json:"run_id"`
	WorkDir           string        `json:"work_dir"`
	Status            ledger.Status `json:"status"`
	Stage             string        `json:"stage"`
	Resumed           bool          `json:"resumed"`
	ChunkCount        int           `json:"chunk_count"`
	DegradedCount     int           `json:"degraded_count"`
	UntranslatedCount int           `json:"untranslated_count"`
	SynthesisCalls    int           `json:"synthesis_calls"`
	OutputPath        string        `json:"output_path,omitempty"`
	Error             string        `json:"error,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        *time.Time    `json:"finished_at,omitempty"`
}

func newRunView(r ledger.Run) runView {
	v := runView{
		RunID:             r.RunID,
		WorkDir:           r.WorkDir,
		Status:            r.Status,
		Stage:             r.Stage,
		Resumed:           r.Resumed,
		ChunkCount:        r.ChunkCount,
		DegradedCount:     r.DegradedCount,
		UntranslatedCount: r.UntranslatedCount,
		SynthesisCalls:    r.SynthesisCalls,
		OutputPath:        r.OutputPath,
		Error:             r.ErrorMessage,
		StartedAt:         r.StartedAt,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		v.FinishedAt = &finished
	}
	return v
}

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				views := make([]runView, 0, len(runs))
				for _, r := range runs {
					views = append(views, newRunView(r))
				}
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				rows = append(rows, []string{
					shortID(r.RunID),
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					string(r.Status),
					r.Stage,
					strconv.Itoa(r.ChunkCount),
					strconv.Itoa(r.DegradedCount),
					strconv.Itoa(r.SynthesisCalls),
					formatElapsed(r.Elapsed()),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Run", "Started", "Status", "Stage", "Chunks", "Degraded", "Calls", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")
	cmd.AddCommand(newRunsShowCommand(ctx))
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run and its degraded chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := findRun(cmd, store, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			degraded, err := store.DegradedChunks(cmd.Context(), run.RunID)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, struct {
					runView
					Degraded []ledger.DegradedChunk `json:"degraded"`
				}{newRunView(run), degraded})
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			writeLines(out, renderSectionHeader("Run "+run.RunID, colorize)...)
			writeLines(out,
				renderStatusLine("Status", runStatusKind(run), string(run.Status), colorize),
				renderStatusLine("Stage", statusInfo, run.Stage, colorize),
				renderStatusLine("Work directory", statusInfo, run.WorkDir, colorize),
				renderStatusLine("Resumed", statusInfo, yesNo(run.Resumed), colorize),
				renderStatusLine("Chunks", statusInfo, strconv.Itoa(run.ChunkCount), colorize),
				renderStatusLine("Synthesis calls", statusInfo, strconv.Itoa(run.SynthesisCalls), colorize),
				renderStatusLine("Elapsed", statusInfo, formatElapsed(run.Elapsed()), colorize),
			)
			if run.OutputPath != "" {
				writeLines(out, renderStatusLine("Output", statusOK, run.OutputPath, colorize))
			}
			if run.ErrorMessage != "" {
				writeLines(out, renderStatusLine("Error", statusError, run.ErrorMessage, colorize))
			}
			if len(degraded) > 0 {
				rows := make([][]string, 0, len(degraded))
				for _, d := range degraded {
					rows = append(rows, []string{strconv.Itoa(d.ChunkIndex), transcript.FormatRange(d.Start, d.End), d.Reason})
				}
				fmt.Fprintln(out)
				writeLines(out, renderSectionHeader("Degraded chunks", colorize)...)
				fmt.Fprintln(out, renderTable([]string{"#", "Range", "Reason"}, rows, []columnAlignment{alignRight}))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func openLedger(cfg *config.Config) (*ledger.Store, error) {
	if strings.TrimSpace(cfg.Paths.LedgerPath) == "" {
		return nil, errors.New("run ledger is disabled (paths.ledger_path is empty)")
	}
	return ledger.Open(cfg.Paths.LedgerPath)
}

// findRun accepts a full run ID or the short prefix "runs" prints.
func findRun(cmd *cobra.Command, store *ledger.Store, id string) (ledger.Run, error) {
	run, err := store.GetRun(cmd.Context(), id)
	if !errors.Is(err, services.ErrNotFound) {
		return run, err
	}
	runs, listErr := store.ListRuns(cmd.Context(), 0)
	if listErr != nil {
		return ledger.Run{}, listErr
	}
	var matches []ledger.Run
	for _, r := range runs {
		if strings.HasPrefix(r.RunID, id) {
			matches = append(matches, r)
		}
	}
	switch len(matches) {
	case 0:
		return ledger.Run{}, err
	case 1:
		return matches[0], nil
	default:
		return ledger.Run{}, fmt.Errorf("run id %q is ambiguous (%d matches)", id, len(matches))
	}
}

func runStatusKind(r ledger.Run) statusKind {
	switch r.Status {
	case ledger.StatusCompleted:
		if r.DegradedCount > 0 {
			return statusWarn
		}
		return statusOK
	case ledger.StatusFailed:
		return statusError
	case ledger.StatusCanceled:
		return statusWarn
	default:
		return statusInfo
	}
}
