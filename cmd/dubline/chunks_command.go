package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dubline/internal/chunker"
	"dubline/internal/config"
	"dubline/internal/pipeline"
	"dubline/internal/transcript"
)

type chunkPlan struct {
	Fixes  []transcript.Fix `json:"fixes,omitempty"`
	Chunks []chunker.Chunk  `json:"chunks"`
}

func newChunksCommand(ctx *commandContext) *cobra.Command {
	var transcriptPath string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "chunks",
		Short: "Preview how a transcript will be chunked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			plan, err := buildChunkPlan(cfg, transcriptPath)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, plan)
			}

			out := cmd.OutOrStdout()
			if n := len(plan.Fixes); n > 0 {
				colorize := shouldColorize(out)
				writeLines(out, renderStatusLine("Transcript fixes", statusWarn,
					fmt.Sprintf("%d segments adjusted (%s policy)", n, cfg.Transcript.MalformedPolicy), colorize))
			}
			rows := make([][]string, 0, len(plan.Chunks))
			for _, c := range plan.Chunks {
				rows = append(rows, []string{
					strconv.Itoa(c.Index),
					transcript.FormatRange(c.Start, c.End),
					formatSeconds(c.Duration()),
					strconv.Itoa(len(c.SegmentIndices)),
					preview(c.Text),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Range", "Duration", "Segments", "Text"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%d chunks (max %s each)\n", len(plan.Chunks), cfg.Chunking.MaxChunkDuration())
			return nil
		},
	}

	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "Transcript file (.json or .srt)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the chunk plan as JSON")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func buildChunkPlan(cfg *config.Config, path string) (chunkPlan, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return chunkPlan{}, fmt.Errorf("resolve transcript path: %w", err)
	}
	segments, err := transcript.Load(expanded)
	if err != nil {
		return chunkPlan{}, err
	}
	segments, fixes, err := transcript.Normalize(segments, transcript.NormalizeOptions{
		Policy:           transcript.Policy(cfg.Transcript.MalformedPolicy),
		OverlapTolerance: cfg.Transcript.OverlapTolerance(),
	})
	if err != nil {
		return chunkPlan{}, err
	}
	chunks, err := chunker.Split(segments, pipeline.ChunkOptions(cfg))
	if err != nil {
		return chunkPlan{}, err
	}
	return chunkPlan{Fixes: fixes, Chunks: chunks}, nil
}
