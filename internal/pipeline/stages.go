package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dubline/internal/audio"
	"dubline/internal/checkpoint"
	"dubline/internal/chunker"
	"dubline/internal/fileutil"
	"dubline/internal/logging"
	"dubline/internal/media/ffmpeg"
	"dubline/internal/reconcile"
	"dubline/internal/rotator"
	"dubline/internal/services"
	"dubline/internal/stitch"
	"dubline/internal/synthesis"
	"dubline/internal/transcript"
	"dubline/internal/translate"
)

// historyTurns is how many preceding chunks are sent as translation context.
const historyTurns = 3

type runner struct {
	engine   *Engine
	store    *checkpoint.Store
	state    *checkpoint.State
	input    Input
	segments []transcript.Segment
	opts     chunker.Options
	logger   *slog.Logger

	calls   int
	timings []StageTiming
}

// step produces the named stage from its predecessor.
func (r *runner) step(target checkpoint.Stage) func(context.Context, *slog.Logger) error {
	switch target {
	case checkpoint.StageChunked:
		return r.chunk
	case checkpoint.StageTranslated:
		return r.translate
	case checkpoint.StageSynthesized:
		return r.synthesize
	case checkpoint.StageReconciled:
		return r.reconcile
	case checkpoint.StageStitched:
		return r.stitch
	case checkpoint.StageComplete:
		return r.finalize
	default:
		return nil
	}
}

func (r *runner) execute(ctx context.Context) error {
	if r.state.Stage == checkpoint.StageComplete && r.wantsNewOutput() {
		logger := logging.WithContext(services.WithStage(ctx, "complete"), r.logger)
		if err := r.finalize(ctx, logger); err != nil {
			return r.fail(logger, err)
		}
		return r.store.Save(r.state)
	}

	for r.state.Stage != checkpoint.StageComplete {
		if err := ctx.Err(); err != nil {
			return r.fail(r.logger, err)
		}
		target := r.state.Stage.Next()
		step := r.step(target)
		if step == nil {
			return fmt.Errorf("no step produces stage %s", target)
		}
		stageCtx := services.WithStage(ctx, strings.ToLower(string(target)))
		logger := logging.WithContext(stageCtx, r.logger)
		logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

		started := r.engine.deps.Now()
		if err := step(stageCtx, logger); err != nil {
			return r.fail(logger, err)
		}
		if err := r.state.Advance(target); err != nil {
			return err
		}
		r.state.LastError = ""
		if err := r.store.Save(r.state); err != nil {
			return err
		}
		elapsed := r.engine.deps.Now().Sub(started)
		r.timings = append(r.timings, StageTiming{Stage: target, Duration: elapsed})
		r.engine.deps.Metrics.StageDuration(strings.ToLower(string(target)), elapsed)
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("elapsed", elapsed),
		)
	}
	return nil
}

func (r *runner) fail(logger *slog.Logger, err error) error {
	r.state.LastError = err.Error()
	if saveErr := r.store.Save(r.state); saveErr != nil {
		logger.Error("failed to persist stage failure", logging.Error(saveErr))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logger.Info("run interrupted; progress saved",
			logging.String(logging.FieldEventType, "stage_interrupted"),
			logging.Int("completed_chunks", len(r.state.Completed)),
		)
		return err
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("error_class", services.Classify(err).String()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "fix the cause and rerun; completed work is kept"),
	)
	return err
}

// wantsNewOutput reports whether a completed run must redo finalize: the
// requested output or video changed, or the recorded output is gone.
func (r *runner) wantsNewOutput() bool {
	out := strings.TrimSpace(r.input.OutputPath)
	video := strings.TrimSpace(r.input.VideoPath)
	if out == "" && video == "" {
		return false
	}
	if out != r.state.OutputPath || video != r.state.VideoPath {
		return true
	}
	ok, err := fileutil.NonEmptyFile(out)
	return err != nil || !ok
}

func (r *runner) chunk(_ context.Context, logger *slog.Logger) error {
	chunks, err := chunker.Split(r.segments, r.opts)
	if err != nil {
		return err
	}
	r.state.Chunks = chunks
	logger.Info("transcript chunked",
		logging.Int("segments", len(r.segments)),
		logging.Int("chunks", len(chunks)),
	)
	return nil
}

func (r *runner) translate(ctx context.Context, logger *slog.Logger) error {
	m := r.engine.deps.Metrics
	for _, idx := range r.state.PendingTranslation() {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk := r.state.Chunks[idx]
		chunkCtx := services.WithChunkIndex(ctx, idx)
		text, err := r.engine.deps.Translator.Translate(chunkCtx, translate.Request{
			Index:   idx,
			Text:    chunk.Text,
			History: r.history(idx),
		})
		kept := false
		switch {
		case err == nil:
			m.Translation("translated")
		case errors.Is(err, services.ErrContentRejected):
			logging.WarnWithContext(logging.WithContext(chunkCtx, logger), "translation refused; keeping source text", "translation_rejected",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "review the chunk text or switch translation model"),
				logging.String(logging.FieldImpact, "chunk is voiced in the source language"),
			)
			text, kept = chunk.Text, true
			m.Translation("content_rejected")
		default:
			m.Translation("failed")
			return fmt.Errorf("translate chunk %d: %w", idx, err)
		}
		r.state.RecordTranslation(idx, text, kept)
		if err := r.store.Save(r.state); err != nil {
			return err
		}
	}
	logger.Info("chunks translated",
		logging.Int("chunks", len(r.state.Chunks)),
		logging.Int("untranslated", len(r.state.Untranslated)),
	)
	return nil
}

func (r *runner) history(idx int) []translate.Turn {
	var turns []translate.Turn
	for j := max(0, idx-historyTurns); j < idx; j++ {
		if text, ok := r.state.Translations[j]; ok {
			turns = append(turns, translate.Turn{Source: r.state.Chunks[j].Text, Translation: text})
		}
	}
	return turns
}

func (r *runner) synthesize(ctx context.Context, logger *slog.Logger) error {
	pending := r.state.PendingSynthesis()
	if len(pending) == 0 {
		return nil
	}
	driver, pool, err := r.engine.newDriver(logger)
	if err != nil {
		return err
	}
	work := make([]synthesis.TranslatedChunk, 0, len(pending))
	for _, idx := range pending {
		work = append(work, synthesis.TranslatedChunk{
			Chunk:          r.state.Chunks[idx],
			TranslatedText: r.state.Translations[idx],
		})
	}
	logger.Info("synthesizing chunks",
		logging.Int("pending", len(pending)),
		logging.Int("completed", len(r.state.Completed)),
		logging.Int("max_calls_per_chunk", driver.MaxCalls()),
	)
	_, err = pool.Run(ctx, work, func(a synthesis.Artifact) error {
		r.calls += a.Calls
		r.state.RecordArtifact(a)
		return r.store.Save(r.state)
	})
	return err
}

func (e *Engine) newDriver(logger *slog.Logger) (*synthesis.Driver, *synthesis.Pool, error) {
	cfg := e.cfg
	rot, err := rotator.New(cfg.Rotation.Models, cfg.CredentialIDs(),
		rotator.WithCooldown(cfg.Rotation.DefaultCooldown()),
		rotator.WithThrottleCooldown(cfg.Rotation.ThrottleCooldown()),
		rotator.WithClock(e.deps.Now),
		rotator.WithLogger(logger),
		rotator.WithObserver(e.deps.Metrics),
	)
	if err != nil {
		return nil, nil, err
	}
	driver, err := synthesis.NewDriver(e.deps.Synthesizer, rot, synthesis.Options{
		OutputDir:       e.artifactDir(),
		Voice:           cfg.Synthesis.Voice,
		Keys:            cfg.CredentialKeys(),
		AttemptsPerPair: cfg.Synthesis.AttemptsPerPair,
		BackoffBase:     cfg.Synthesis.BackoffBase(),
		BackoffMax:      cfg.Synthesis.BackoffMax(),
		RequestTimeout:  cfg.Synthesis.RequestTimeout(),
		MaxCooldownWait: cfg.Rotation.MaxCooldownWait(),
		Thresholds: audio.Thresholds{
			Peak:   cfg.Synthesis.AmplitudePeakThreshold,
			RMS:    cfg.Synthesis.AmplitudeRMSThreshold,
			Window: cfg.Synthesis.AmplitudeWindow(),
		},
		PlaceholderRate: cfg.Stitch.SampleRate,
		Gate:            rotator.NewGate(cfg.Synthesis.PerCredentialConcurrency, cfg.Synthesis.MinRequestInterval()),
		Metrics:         e.deps.Metrics,
		Logger:          logger,
		Sleep:           e.deps.Sleep,
		Now:             e.deps.Now,
	})
	if err != nil {
		return nil, nil, err
	}
	return driver, synthesis.NewPool(driver, cfg.Synthesis.Workers, logger), nil
}

func (r *runner) reconcile(ctx context.Context, logger *slog.Logger) error {
	cfg := r.engine.cfg
	rec, err := reconcile.New(r.engine.deps.Stretcher, reconcile.Options{
		MinSpeed:  cfg.Reconcile.MinSpeedFactor,
		MaxSpeed:  cfg.Reconcile.MaxSpeedFactor,
		Epsilon:   cfg.Reconcile.Epsilon(),
		OutputDir: r.engine.fittedDir(),
		Metrics:   r.engine.deps.Metrics,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	for _, idx := range r.state.PendingReconcile() {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := rec.Reconcile(ctx, r.state.Artifacts[idx], r.state.Chunks[idx].TargetDuration())
		if err != nil {
			return fmt.Errorf("reconcile chunk %d: %w", idx, err)
		}
		r.state.RecordReconciled(res)
		if err := r.store.Save(r.state); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) stitch(ctx context.Context, logger *slog.Logger) error {
	cfg := r.engine.cfg
	fade := cfg.Stitch.Fade()
	if fade == 0 {
		fade = -time.Millisecond
	}
	stitcher := stitch.New(stitch.Options{
		SampleRate:   cfg.Stitch.SampleRate,
		Fade:         fade,
		GapTolerance: cfg.Stitch.GapTolerance(),
		Logger:       logger,
	})
	fitted := make(map[int]synthesis.Artifact, len(r.state.Reconciled))
	for idx, res := range r.state.Reconciled {
		fitted[idx] = res.Artifact
	}
	res, err := stitcher.Stitch(ctx, r.state.Chunks, fitted, r.engine.trackPath())
	if err != nil {
		return err
	}
	r.state.Track = &res
	return nil
}

func (r *runner) finalize(ctx context.Context, logger *slog.Logger) error {
	if r.state.Track == nil {
		return services.Wrap(services.ErrValidation, "pipeline", "finalize", "no stitched track recorded", nil)
	}
	video := strings.TrimSpace(r.input.VideoPath)
	out := strings.TrimSpace(r.input.OutputPath)
	switch {
	case video != "":
		if r.engine.deps.Muxer == nil {
			return services.Wrap(services.ErrConfiguration, "pipeline", "finalize", "no muxer configured", nil)
		}
		res, err := r.engine.deps.Muxer.Mux(ctx, ffmpeg.MuxRequest{
			VideoPath:  video,
			AudioPath:  r.state.Track.Path,
			OutputPath: out,
			Language:   r.engine.dubLanguage(),
		})
		if err != nil {
			return err
		}
		r.state.OutputPath = res.OutputPath
		r.state.VideoPath = video
	case out != "":
		if err := ensureParent(out); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		if err := fileutil.CopyFileVerified(r.state.Track.Path, out); err != nil {
			return fmt.Errorf("copy track: %w", err)
		}
		r.state.OutputPath = out
		r.state.VideoPath = ""
	default:
		r.state.OutputPath = r.state.Track.Path
		r.state.VideoPath = ""
	}
	logger.Info("dubbed output ready",
		logging.String("output_path", r.state.OutputPath),
		logging.Seconds("duration_seconds", r.state.Track.DurationSeconds),
	)
	return nil
}
