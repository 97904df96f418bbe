package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"dubline/internal/audio"
	"dubline/internal/logging"
	"dubline/internal/metrics"
	"dubline/internal/services"
	"dubline/internal/synthesis"
)

const (
	defaultMinSpeed = 0.8
	defaultMaxSpeed = 1.25
	defaultEpsilon  = 20 * time.Millisecond
)

// Stretcher changes tempo by factor (>1 is faster) without changing pitch.
type Stretcher interface {
	Stretch(ctx context.Context, in, out string, factor float64, sampleRate int) error
}

// Action is the adjustment applied to an artifact.
type Action string

const (
	ActionNone    Action = "none"
	ActionStretch Action = "stretch"
	ActionClamp   Action = "clamp"
	ActionPad     Action = "pad"
)

// Result describes one reconciliation.
type Result struct {
	Artifact synthesis.Artifact `json:"artifact"`
	// Factor is the required speed factor; Applied is what was used.
	Factor  float64 `json:"factor"`
	Applied float64 `json:"applied"`
	Action  Action  `json:"action"`
	// DriftSeconds is output minus target duration (positive overshoots).
	DriftSeconds float64 `json:"drift_seconds"`
}

// Options configure a Reconciler.
type Options struct {
	MinSpeed  float64
	MaxSpeed  float64
	Epsilon   time.Duration
	OutputDir string
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// Reconciler is safe for concurrent use.
type Reconciler struct {
	stretcher Stretcher
	opts      Options
	logger    *slog.Logger
}

// New validates the speed band and returns a Reconciler.
func New(stretcher Stretcher, opts Options) (*Reconciler, error) {
	if opts.MinSpeed == 0 {
		opts.MinSpeed = defaultMinSpeed
	}
	if opts.MaxSpeed == 0 {
		opts.MaxSpeed = defaultMaxSpeed
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = defaultEpsilon
	}
	if opts.MinSpeed <= 0 || opts.MinSpeed > 1 || opts.MaxSpeed < 1 {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "new",
			fmt.Sprintf("speed band [%.3f, %.3f] must contain 1", opts.MinSpeed, opts.MaxSpeed), nil)
	}
	if stretcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "new", "stretcher is required", nil)
	}
	if opts.OutputDir == "" {
		return nil, services.Wrap(services.ErrConfiguration, "reconcile", "new", "output directory is required", nil)
	}
	return &Reconciler{stretcher: stretcher, opts: opts, logger: logging.NewComponentLogger(opts.Logger, "reconcile")}, nil
}

// OutputPath returns the reconciled artifact location for a chunk.
func (r *Reconciler) OutputPath(index int) string {
	return filepath.Join(r.opts.OutputDir, fmt.Sprintf("chunk-%04d.fit.wav", index))
}

// Decide returns the action and applied factor for a required factor.
func (r *Reconciler) Decide(generated, target time.Duration) (Action, float64, float64) {
	factor := generated.Seconds() / target.Seconds()
	switch {
	case absDuration(generated-target) <= r.opts.Epsilon:
		return ActionNone, factor, 1
	case factor > r.opts.MaxSpeed:
		return ActionClamp, factor, r.opts.MaxSpeed
	case factor < r.opts.MinSpeed:
		return ActionPad, factor, 1
	default:
		return ActionStretch, factor, factor
	}
}

// Reconcile fits artifact to target and writes the result next to it.
func (r *Reconciler) Reconcile(ctx context.Context, artifact synthesis.Artifact, target time.Duration) (Result, error) {
	if target <= 0 {
		return Result{}, services.Wrap(services.ErrValidation, "reconcile", "target",
			fmt.Sprintf("chunk %d has non-positive target %s", artifact.ChunkIndex, target), nil)
	}
	ctx = services.WithChunkIndex(ctx, artifact.ChunkIndex)
	logger := logging.WithContext(ctx, r.logger)

	clip, err := audio.ReadWAV(artifact.Path)
	if err != nil {
		return Result{}, services.Wrap(services.ErrNotFound, "reconcile", "read artifact", artifact.Path, err)
	}
	action, factor, applied := r.Decide(clip.Duration(), target)

	if action == ActionStretch || action == ActionClamp {
		stretched, err := r.stretch(ctx, artifact, applied, clip.SampleRate)
		if err != nil {
			return Result{}, err
		}
		clip = stretched
	}
	targetSamples := audio.SamplesFor(target, clip.SampleRate)
	switch action {
	case ActionNone, ActionStretch, ActionPad:
		clip = clip.FitLength(targetSamples)
	case ActionClamp:
		if len(clip.Samples) < targetSamples {
			clip = clip.FitLength(targetSamples)
		}
	}

	out := r.OutputPath(artifact.ChunkIndex)
	if err := audio.WriteWAV(out, clip); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "reconcile", "write", out, err)
	}
	drift := clip.Seconds() - target.Seconds()
	fitted := artifact
	fitted.Path = out
	fitted.SampleRate = clip.SampleRate
	fitted.DurationSeconds = clip.Seconds()

	r.opts.Metrics.Reconciled(string(action), factor)
	if action == ActionClamp && drift > r.opts.Epsilon.Seconds() {
		logging.WarnWithContext(logger, "timing drift after maximum speed-up", "timing_drift",
			logging.Float64("required_factor", round3(factor)),
			logging.Float64("applied_factor", applied),
			logging.Seconds("target_seconds", target.Seconds()),
			logging.Seconds("drift_seconds", drift),
			logging.String(logging.FieldErrorHint, "shorten the translation or raise reconcile.max_speed_factor"),
			logging.String(logging.FieldImpact, "speech overruns its slot; the stitcher shifts following audio"),
		)
	} else {
		logger.Debug("chunk reconciled",
			logging.String("action", string(action)),
			logging.Float64("factor", round3(factor)),
			logging.Seconds("drift_seconds", drift),
		)
	}
	return Result{Artifact: fitted, Factor: factor, Applied: applied, Action: action, DriftSeconds: drift}, nil
}

func (r *Reconciler) stretch(ctx context.Context, artifact synthesis.Artifact, factor float64, rate int) (audio.Clip, error) {
	tmp := filepath.Join(r.opts.OutputDir, fmt.Sprintf(".chunk-%04d.stretch.wav", artifact.ChunkIndex))
	defer os.Remove(tmp)
	if err := r.stretcher.Stretch(ctx, artifact.Path, tmp, factor, rate); err != nil {
		return audio.Clip{}, services.Wrap(services.ErrExternalTool, "reconcile", "stretch",
			fmt.Sprintf("chunk %d factor %.3f", artifact.ChunkIndex, factor), err)
	}
	clip, err := audio.ReadWAV(tmp)
	if err != nil {
		return audio.Clip{}, services.Wrap(services.ErrExternalTool, "reconcile", "read stretched", tmp, err)
	}
	return clip, nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
