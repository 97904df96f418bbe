package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"dubline/internal/checkpoint"
	"dubline/internal/chunker"
	"dubline/internal/config"
	"dubline/internal/ledger"
	"dubline/internal/logging"
	"dubline/internal/notifications"
	"dubline/internal/services"
	"dubline/internal/transcript"
)

// Run executes or resumes the pipeline for in. The returned report reflects
// the checkpoint even when an error stops the run early.
func (e *Engine) Run(ctx context.Context, in Input) (Report, error) {
	if len(in.Segments) == 0 {
		return Report{}, services.Wrap(services.ErrValidation, "pipeline", "input", "transcript has no segments", nil)
	}
	if strings.TrimSpace(in.VideoPath) != "" && strings.TrimSpace(in.OutputPath) == "" {
		return Report{}, services.Wrap(services.ErrValidation, "pipeline", "input", "output path is required with a video", nil)
	}

	lock, err := checkpoint.AcquireLock(e.workDir())
	if err != nil {
		return Report{}, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			e.logger.Warn("release work dir lock", logging.Error(err))
		}
	}()
	for _, dir := range []string{e.artifactDir(), e.fittedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Report{}, fmt.Errorf("create work directory: %w", err)
		}
	}

	segments, fixes, err := transcript.Normalize(in.Segments, transcript.NormalizeOptions{
		Policy:           transcript.Policy(e.cfg.Transcript.MalformedPolicy),
		OverlapTolerance: e.cfg.Transcript.OverlapTolerance(),
	})
	if err != nil {
		return Report{}, err
	}
	if len(fixes) > 0 {
		logging.WarnWithContext(e.logger, "transcript repaired before chunking", "transcript_fixed",
			logging.Int("fixes", len(fixes)),
			logging.String("policy", e.cfg.Transcript.MalformedPolicy),
			logging.String(logging.FieldErrorHint, "set transcript.malformed_policy = \"strict\" to reject instead"),
			logging.String(logging.FieldImpact, "segment timings were adjusted"),
		)
	}

	opts := e.chunkOptions()
	store := checkpoint.NewStore(e.workDir())
	st, resumed, repair, err := e.loadState(ctx, store, Fingerprint(segments, opts, e.cfg), in)
	if err != nil {
		return Report{}, err
	}

	ctx = services.WithRunID(ctx, st.RunID)
	logger := logging.WithContext(ctx, e.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("resume_stage", string(st.Stage)),
		logging.Bool("resumed", resumed),
		logging.Int("segments", len(segments)),
		logging.String("work_dir", e.workDir()),
	)
	if e.deps.Ledger != nil {
		if err := e.deps.Ledger.RecordStart(ctx, st.RunID, e.workDir(), st.Fingerprint, string(st.Stage), resumed); err != nil {
			logging.WarnWithContext(logger, "ledger start not recorded", "ledger_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history will be incomplete"),
			)
		}
	}

	r := &runner{
		engine:   e,
		store:    store,
		state:    st,
		input:    in,
		segments: segments,
		opts:     opts,
		logger:   logger,
	}
	runErr := r.execute(ctx)

	report := Summarize(st, e.cfg.Reconcile.Epsilon())
	report.WorkDir = e.workDir()
	report.Resumed = resumed
	report.SynthesisCalls = r.calls
	report.TranscriptFixes = fixes
	report.Repaired = repair.Synthesized
	report.Timings = r.timings
	e.finish(ctx, logger, report, runErr)
	return report, runErr
}

func (e *Engine) chunkOptions() chunker.Options { return ChunkOptions(e.cfg) }

// ChunkOptions returns the chunker settings cfg describes. Previews and runs
// share it so a previewed plan matches what a run would build.
func ChunkOptions(cfg *config.Config) chunker.Options {
	return chunker.Options{
		MaxDuration: cfg.Chunking.MaxChunkDuration(),
		MinDuration: cfg.Chunking.MinChunkDuration(),
		Lookback:    cfg.Chunking.LookbackWindow(),
		MaxChars:    cfg.Chunking.MaxChars,
	}
}

// loadState returns the checkpoint to resume, or a fresh INIT state.
func (e *Engine) loadState(ctx context.Context, store *checkpoint.Store, fingerprint string, in Input) (*checkpoint.State, bool, checkpoint.Repair, error) {
	if in.Restart {
		path, err := store.Archive("restart")
		if err != nil {
			return nil, false, checkpoint.Repair{}, err
		}
		if path != "" {
			e.logger.Info("previous checkpoint archived", logging.String("archive_path", path))
		}
	}

	st, err := store.Load()
	switch {
	case errors.Is(err, services.ErrCheckpointCorrupt):
		logging.WarnWithContext(e.logger, "checkpoint unreadable; starting over", "checkpoint_corrupt",
			logging.Error(err),
			logging.String("checkpoint_path", store.Path()),
			logging.String(logging.FieldImpact, "all stages run again"),
		)
		if _, err := store.Archive("corrupt"); err != nil {
			return nil, false, checkpoint.Repair{}, err
		}
		st = nil
	case err != nil:
		return nil, false, checkpoint.Repair{}, err
	}

	if st != nil && st.Fingerprint != fingerprint {
		logging.WarnWithContext(e.logger, "checkpoint was built from different input; starting over", "checkpoint_mismatch",
			logging.String("checkpoint_run_id", st.RunID),
			logging.String(logging.FieldImpact, "all stages run again"),
		)
		if _, err := store.Archive("mismatch"); err != nil {
			return nil, false, checkpoint.Repair{}, err
		}
		st = nil
	}

	if st == nil {
		st = checkpoint.NewState(uuid.NewString(), fingerprint, e.deps.Now())
		if err := store.Save(st); err != nil {
			return nil, false, checkpoint.Repair{}, err
		}
		return st, false, checkpoint.Repair{}, nil
	}

	repair := st.VerifyArtifacts()
	if repair.Changed() {
		logging.WarnWithContext(e.logger, "recorded artifacts missing; chunks will be regenerated", "artifacts_missing",
			logging.Any("synthesized", repair.Synthesized),
			logging.Any("reconciled", repair.Reconciled),
			logging.Bool("track", repair.Track),
			logging.String("from_stage", string(repair.From)),
			logging.String("resume_stage", string(repair.Stage)),
			logging.String(logging.FieldImpact, "affected chunks are synthesized again"),
		)
	}
	if in.RetryDegraded {
		if dropped := st.ForgetDegraded(); len(dropped) > 0 {
			e.logger.Info("retrying degraded chunks", logging.Any("chunks", dropped))
		}
	}
	if err := store.Save(st); err != nil {
		return nil, false, checkpoint.Repair{}, err
	}
	return st, true, repair, nil
}

func (e *Engine) finish(ctx context.Context, logger *slog.Logger, report Report, runErr error) {
	status := ledger.StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = ledger.StatusCanceled
	case runErr != nil:
		status = ledger.StatusFailed
	}

	if e.deps.Ledger != nil {
		err := e.deps.Ledger.RecordFinish(context.WithoutCancel(ctx), report.RunID, ledger.Outcome{
			Status:            status,
			Stage:             string(report.Stage),
			ChunkCount:        report.ChunkCount,
			UntranslatedCount: len(report.Untranslated),
			SynthesisCalls:    report.SynthesisCalls,
			OutputPath:        report.OutputPath,
			Err:               runErr,
			Degraded:          report.ledgerDegraded(),
		})
		if err != nil {
			logging.WarnWithContext(logger, "ledger outcome not recorded", "ledger_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "run history will be incomplete"),
			)
		}
	}
	if path := e.cfg.Metrics.TextfilePath; path != "" {
		if err := e.deps.Metrics.WriteTextfile(path); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_error",
				logging.Error(err),
				logging.String("textfile_path", path),
			)
		}
	}

	if e.deps.Notifier != nil {
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Notifications.RequestTimeout())
		err := e.deps.Notifier.NotifyRunFinished(notifyCtx, notifications.RunSummary{
			RunID:        report.RunID,
			Stage:        string(report.Stage),
			Complete:     report.Complete(),
			Canceled:     status == ledger.StatusCanceled,
			Chunks:       report.ChunkCount,
			Degraded:     len(report.Degraded),
			Untranslated: len(report.Untranslated),
			OutputPath:   firstNonEmpty(report.OutputPath, report.TrackPath),
			Err:          runErr,
		})
		cancel()
		if err != nil {
			logging.WarnWithContext(logger, "run notification not sent", "notification_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
				logging.String(logging.FieldImpact, "no push alert for this run"),
			)
		}
	}

	if report.Partial() {
		logging.WarnWithContext(logger, "run finished with silent chunks", "run_partial",
			logging.Int("degraded", len(report.Degraded)),
			logging.String(logging.FieldErrorHint, "rerun with --retry-degraded once credentials recover"),
			logging.String(logging.FieldImpact, "listed time ranges contain silence instead of speech"),
		)
	}
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finish"),
		logging.String("status", string(status)),
		logging.String("stage", string(report.Stage)),
		logging.Int("chunks", report.ChunkCount),
		logging.Int("synthesis_calls", report.SynthesisCalls),
		logging.Int("degraded", len(report.Degraded)),
		logging.String("output_path", firstNonEmpty(report.OutputPath, report.TrackPath)),
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func ensureParent(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
