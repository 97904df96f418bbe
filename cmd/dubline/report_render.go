package main

import (
	"fmt"
	"io"
	"strconv"

	"dubline/internal/checkpoint"
	"dubline/internal/pipeline"
	"dubline/internal/transcript"
)

func renderReport(w io.Writer, report pipeline.Report, colorize bool) {
	writeLines(w, renderSectionHeader("Run "+report.RunID, colorize)...)

	stageKind := statusOK
	stageDetail := string(report.Stage)
	if !report.Complete() {
		stageKind = statusWarn
		stageDetail += " (incomplete; rerun to resume)"
	}
	writeLines(w,
		renderStatusLine("Stage", stageKind, stageDetail, colorize),
		renderStatusLine("Resumed", statusInfo, yesNo(report.Resumed), colorize),
		renderStatusLine("Work directory", statusInfo, report.WorkDir, colorize),
	)
	if report.TrackPath != "" {
		writeLines(w, renderStatusLine("Track", statusOK,
			fmt.Sprintf("%s (%s)", report.TrackPath, formatSeconds(report.DurationSeconds)), colorize))
	}
	if report.OutputPath != "" {
		writeLines(w, renderStatusLine("Output", statusOK, report.OutputPath, colorize))
	}
	writeLines(w,
		renderStatusLine("Chunks", statusInfo, strconv.Itoa(report.ChunkCount), colorize),
		renderStatusLine("Synthesis calls", statusInfo, strconv.Itoa(report.SynthesisCalls), colorize),
	)
	if n := len(report.TranscriptFixes); n > 0 {
		writeLines(w, renderStatusLine("Transcript fixes", statusWarn, strconv.Itoa(n), colorize))
	}
	if n := len(report.Repaired); n > 0 {
		writeLines(w, renderStatusLine("Regenerated", statusWarn, fmt.Sprintf("%d chunks with missing artifacts", n), colorize))
	}
	if report.LastError != "" {
		writeLines(w, renderStatusLine("Last error", statusError, report.LastError, colorize))
	}
	if report.Partial() {
		writeLines(w, renderStatusLine("Result", statusWarn,
			fmt.Sprintf("partial: %d chunks are silence (rerun with --retry-degraded)", len(report.Degraded)), colorize))
	}

	renderChunkTables(w, report, colorize)

	if len(report.Timings) > 0 {
		rows := make([][]string, 0, len(report.Timings))
		for _, t := range report.Timings {
			rows = append(rows, []string{string(t.Stage), formatElapsed(t.Duration)})
		}
		fmt.Fprintln(w)
		writeLines(w, renderSectionHeader("Stage timings", colorize)...)
		fmt.Fprintln(w, renderTable([]string{"Stage", "Duration"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

// renderChunkTables prints the degraded, untranslated and drift tables that
// both the run report and "status" show.
func renderChunkTables(w io.Writer, report pipeline.Report, colorize bool) {
	if len(report.Degraded) > 0 {
		rows := make([][]string, 0, len(report.Degraded))
		for _, d := range report.Degraded {
			rows = append(rows, []string{strconv.Itoa(d.Index), transcript.FormatRange(d.Start, d.End), d.Reason})
		}
		fmt.Fprintln(w)
		writeLines(w, renderSectionHeader("Degraded chunks", colorize)...)
		fmt.Fprintln(w, renderTable([]string{"#", "Range", "Reason"}, rows, []columnAlignment{alignRight}))
	}
	if len(report.Untranslated) > 0 {
		rows := make([][]string, 0, len(report.Untranslated))
		for _, c := range report.Untranslated {
			rows = append(rows, []string{strconv.Itoa(c.Index), transcript.FormatRange(c.Start, c.End)})
		}
		fmt.Fprintln(w)
		writeLines(w, renderSectionHeader("Untranslated chunks", colorize)...)
		fmt.Fprintln(w, renderTable([]string{"#", "Range"}, rows, []columnAlignment{alignRight}))
	}
	if len(report.Drift) > 0 {
		rows := make([][]string, 0, len(report.Drift))
		for _, d := range report.Drift {
			rows = append(rows, []string{
				strconv.Itoa(d.Index),
				transcript.FormatRange(d.Start, d.End),
				fmt.Sprintf("%+.3fs", d.Seconds),
				string(d.Action),
				strconv.FormatFloat(d.Factor, 'f', 3, 64),
			})
		}
		fmt.Fprintln(w)
		writeLines(w, renderSectionHeader("Timing drift", colorize)...)
		fmt.Fprintln(w, renderTable(
			[]string{"#", "Range", "Drift", "Action", "Factor"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight},
		))
	}
}

// progress counts how far each stage got for a checkpoint.
type progress struct {
	Translated  int `json:"translated"`
	Synthesized int `json:"synthesized"`
	Reconciled  int `json:"reconciled"`
	Total       int `json:"total"`
}

func stateProgress(st *checkpoint.State) progress {
	return progress{
		Translated:  len(st.Translations),
		Synthesized: len(st.Artifacts),
		Reconciled:  len(st.Reconciled),
		Total:       len(st.Chunks),
	}
}
