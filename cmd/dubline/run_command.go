package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dubline/internal/config"
	"dubline/internal/pipeline"
	"dubline/internal/preflight"
	"dubline/internal/services"
	"dubline/internal/transcript"
)

type runOptions struct {
	transcript    string
	video         string
	output        string
	restart       bool
	retryDegraded bool
	skipPreflight bool
	json          bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dub a transcript, resuming from the work directory checkpoint",
		Long: `Translate, synthesize, fit and stitch a transcript into one timed audio track.

Every stage is checkpointed in the work directory. Running the same command
again after an interruption resumes at the first unfinished stage; chunks that
already have audio are never synthesized twice.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return runPipeline(cmd, ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.transcript, "transcript", "t", "", "Transcript file (.json or .srt)")
	cmd.Flags().StringVar(&opts.video, "video", "", "Video whose audio track is replaced by the dub")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output path (muxed video, or a copy of the track without --video)")
	cmd.Flags().BoolVar(&opts.restart, "restart", false, "Archive the existing checkpoint and start over")
	cmd.Flags().BoolVar(&opts.retryDegraded, "retry-degraded", false, "Synthesize chunks that fell back to silence again")
	cmd.Flags().BoolVar(&opts.skipPreflight, "skip-preflight", false, "Do not run readiness checks before starting")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the completion report as JSON")
	_ = cmd.MarkFlagRequired("transcript")
	return cmd
}

func runPipeline(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, opts runOptions) error {
	if strings.TrimSpace(opts.video) != "" && strings.TrimSpace(opts.output) == "" {
		return errors.New("--output is required with --video")
	}
	transcriptPath, err := config.ExpandPath(opts.transcript)
	if err != nil {
		return fmt.Errorf("resolve transcript path: %w", err)
	}
	segments, err := transcript.Load(transcriptPath)
	if err != nil {
		return err
	}
	in := pipeline.Input{
		Segments:      segments,
		Restart:       opts.restart,
		RetryDegraded: opts.retryDegraded,
	}
	if in.VideoPath, err = expandOptional(opts.video); err != nil {
		return err
	}
	if in.OutputPath, err = expandOptional(opts.output); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if !opts.skipPreflight {
		if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
			return preflightError(failed)
		}
	}

	logger, err := ctx.logger()
	if err != nil {
		return err
	}
	engine, err := newEngine(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer engine.Close()

	report, runErr := engine.Run(signalCtx, in)
	if report.RunID != "" {
		if opts.json {
			if err := writeJSON(cmd, report); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			renderReport(out, report, shouldColorize(out))
		}
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Interrupted; progress is saved. Run the same command again to resume.")
			return runErr
		}
		return withHint(runErr)
	}
	return nil
}

func expandOptional(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	return config.ExpandPath(path)
}

func preflightError(failed []preflight.Result) error {
	parts := make([]string, 0, len(failed))
	for _, r := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	return fmt.Errorf("preflight failed (see `dubline check`): %s", strings.Join(parts, "; "))
}

// withHint appends the operator hint for err's failure class.
func withHint(err error) error {
	switch {
	case errors.Is(err, services.ErrWorkDirLocked):
		return fmt.Errorf("%w (another dubline run is using this work directory)", err)
	case errors.Is(err, services.ErrValidation):
		return fmt.Errorf("%w (fix the transcript or set transcript.malformed_policy = \"fix\")", err)
	}
	if wait, ok := services.ResetHint(err); ok {
		return fmt.Errorf("%w (provider quota resets in about %s; rerun to resume)", err, wait.Round(time.Second))
	}
	if errors.Is(err, services.ErrQuotaExhausted) || errors.Is(err, services.ErrInvalidCredential) {
		return fmt.Errorf("%w (completed work is checkpointed; rerun after fixing the credential)", err)
	}
	return err
}
