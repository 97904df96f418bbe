package synthesis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"dubline/internal/audio"
	"dubline/internal/logging"
	"dubline/internal/metrics"
	"dubline/internal/retry"
	"dubline/internal/rotator"
	"dubline/internal/services"
	"dubline/internal/synth"
)

const (
	defaultRequestTimeout = 2 * time.Minute
	defaultSampleRate     = 24000

	reasonExhausted = "resource_exhausted"
	reasonNoText    = "no_text"
)

// Options configure a Driver.
type Options struct {
	OutputDir string
	Voice     string
	// Keys maps credential IDs to API keys.
	Keys            map[string]string
	AttemptsPerPair int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	RequestTimeout  time.Duration
	MaxCooldownWait time.Duration
	Thresholds      audio.Thresholds
	// PlaceholderRate is the sample rate of silence placeholders.
	PlaceholderRate int
	Gate            *rotator.Gate
	Metrics         *metrics.Metrics
	Logger          *slog.Logger
	// Sleep and Now are overridable for tests.
	Sleep func(context.Context, time.Duration) error
	Now   func() time.Time
}

// Driver synthesizes one chunk at a time; it is safe for concurrent use.
type Driver struct {
	synth   synth.VoiceSynthesizer
	rotator *rotator.Rotator
	opts    Options
	logger  *slog.Logger
}

// NewDriver validates opts and returns a driver.
func NewDriver(s synth.VoiceSynthesizer, r *rotator.Rotator, opts Options) (*Driver, error) {
	if s == nil || r == nil {
		return nil, services.Wrap(services.ErrConfiguration, "synthesis", "new driver", "synthesizer and rotator are required", nil)
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "synthesis", "new driver", "output directory is required", nil)
	}
	if opts.AttemptsPerPair <= 0 {
		opts.AttemptsPerPair = 1
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.PlaceholderRate <= 0 {
		opts.PlaceholderRate = defaultSampleRate
	}
	if opts.Gate == nil {
		opts.Gate = rotator.NewGate(1, 0)
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Driver{
		synth:   s,
		rotator: r,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "synthesis"),
	}, nil
}

// MaxCalls is the upper bound on external calls for one chunk.
func (d *Driver) MaxCalls() int {
	return d.opts.AttemptsPerPair * d.rotator.Size()
}

// Synthesize produces the artifact for chunk. It returns an error only when
// ctx is cancelled before an artifact exists or the artifact cannot be written;
// exhausting every pair yields a degraded silence placeholder instead.
func (d *Driver) Synthesize(ctx context.Context, chunk TranslatedChunk) (Artifact, error) {
	ctx = services.WithChunkIndex(ctx, chunk.Index)
	logger := logging.WithContext(ctx, d.logger)

	text := strings.TrimSpace(chunk.TranslatedText)
	if text == "" {
		logger.Info("chunk has no text; writing silence", logging.Seconds("target_seconds", chunk.Duration()))
		return d.placeholder(chunk, reasonNoText, false, 0)
	}

	excluded := rotator.NewExclusion()
	calls := 0
	var waited time.Duration
	var failures []string
	for {
		if err := ctx.Err(); err != nil {
			return Artifact{}, err
		}
		pair, ok := d.rotator.Next(excluded)
		if !ok {
			wait, retryLater := d.cooldownWait(excluded, waited)
			if !retryLater {
				break
			}
			logger.Info("all untried pairs cooling down; waiting",
				logging.Duration("wait", wait),
				logging.Duration("waited", waited),
			)
			if err := d.opts.Sleep(ctx, wait); err != nil {
				return Artifact{}, err
			}
			waited += wait
			continue
		}

		clip, n, err := d.tryPair(ctx, pair, text)
		calls += n
		if err == nil {
			d.rotator.Report(pair, rotator.Outcome{Kind: rotator.Success})
			return d.write(chunk, clip, pair, calls)
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return Artifact{}, err
		}
		outcome := rotator.OutcomeFromError(err)
		d.rotator.Report(pair, outcome)
		excluded.Add(pair)
		failures = append(failures, pair.String()+"="+outcome.Kind.String())
		logger.Info("pair failed for chunk; rotating",
			logging.String(logging.FieldPair, pair.String()),
			logging.String("outcome", outcome.Kind.String()),
			logging.Int("calls", n),
			logging.Error(err),
		)
	}

	logging.WarnWithContext(logger, "chunk degraded to silence", "chunk_degraded",
		logging.Seconds("start", chunk.Start),
		logging.Seconds("end", chunk.End),
		logging.Int("calls", calls),
		logging.String("failures", strings.Join(failures, ",")),
		logging.String(logging.FieldErrorHint, "check credentials, quotas and provider status"),
		logging.String(logging.FieldImpact, "chunk is silent in the final track"),
	)
	d.opts.Metrics.ChunkDegraded()
	return d.placeholder(chunk, reasonExhausted, true, calls)
}

// cooldownWait returns how long to wait for a cooling, untried pair, bounded
// by the remaining cooldown budget.
func (d *Driver) cooldownWait(excluded rotator.Exclusion, waited time.Duration) (time.Duration, bool) {
	at, ok := d.rotator.NextAvailableAt(excluded)
	if !ok {
		return 0, false
	}
	wait := at.Sub(d.opts.Now())
	if wait < 0 {
		wait = 0
	}
	if waited+wait > d.opts.MaxCooldownWait {
		return 0, false
	}
	return wait, true
}

// tryPair calls the synthesizer for one pair, retrying transient failures.
// It returns the verified clip and the number of external calls made.
func (d *Driver) tryPair(ctx context.Context, pair rotator.Pair, text string) (audio.Clip, int, error) {
	var clip audio.Clip
	calls := 0
	policy := retry.Policy{
		MaxAttempts: d.opts.AttemptsPerPair,
		BaseDelay:   d.opts.BackoffBase,
		MaxDelay:    d.opts.BackoffMax,
		Retryable:   services.IsTransient,
		Hint:        services.ResetHint,
		Sleep:       d.opts.Sleep,
	}
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		release, err := d.opts.Gate.Acquire(ctx, pair.CredentialID)
		if err != nil {
			return err
		}
		defer release()
		calls++
		c, err := d.call(ctx, pair, text, attempt)
		if err == nil {
			clip = c
		}
		return err
	})
	return clip, calls, err
}

func (d *Driver) call(ctx context.Context, pair rotator.Pair, text string, attempt int) (audio.Clip, error) {
	ctx = services.WithRequestID(ctx, uuid.NewString())
	logger := logging.WithContext(ctx, d.logger)

	// In-flight calls are not interrupted by run cancellation.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.RequestTimeout)
	defer cancel()

	start := d.opts.Now()
	out, err := d.synth.Synthesize(callCtx, synth.Request{
		Text:         text,
		Voice:        d.opts.Voice,
		Model:        pair.Model,
		CredentialID: pair.CredentialID,
		APIKey:       d.opts.Keys[pair.CredentialID],
	})
	var clip audio.Clip
	if err == nil {
		clip, err = out.Clip()
		if err != nil {
			err = services.Wrap(services.ErrAudioQuality, "synthesis", "decode", "undecodable audio", err)
		}
	}
	var levels audio.Levels
	if err == nil {
		levels, err = audio.Verify(clip, d.opts.Thresholds)
	}
	elapsed := d.opts.Now().Sub(start)
	outcome := rotator.OutcomeFromError(err).Kind.String()
	d.opts.Metrics.SynthesisAttempt(d.synth.Name(), outcome, elapsed)
	logger.Debug("synthesis call",
		logging.String(logging.FieldPair, pair.String()),
		logging.Int("attempt", attempt),
		logging.String("outcome", outcome),
		logging.Duration("elapsed", elapsed),
		logging.Float64("peak", levels.Peak),
		logging.Float64("window_rms", levels.WindowRMS),
	)
	return clip, err
}

func (d *Driver) write(chunk TranslatedChunk, clip audio.Clip, pair rotator.Pair, calls int) (Artifact, error) {
	path := ArtifactPath(d.opts.OutputDir, chunk.Index)
	if err := audio.WriteWAV(path, clip); err != nil {
		return Artifact{}, services.Wrap(services.ErrExternalTool, "synthesis", "write artifact", path, err)
	}
	d.opts.Metrics.ChunkSynthesized()
	return Artifact{
		ChunkIndex:        chunk.Index,
		Path:              path,
		SampleRate:        clip.SampleRate,
		DurationSeconds:   clip.Seconds(),
		AmplitudeVerified: true,
		Pair:              pair.String(),
		Calls:             calls,
	}, nil
}

func (d *Driver) placeholder(chunk TranslatedChunk, reason string, degraded bool, calls int) (Artifact, error) {
	clip := audio.Silence(d.opts.PlaceholderRate, chunk.TargetDuration())
	path := ArtifactPath(d.opts.OutputDir, chunk.Index)
	if err := audio.WriteWAV(path, clip); err != nil {
		return Artifact{}, services.Wrap(services.ErrExternalTool, "synthesis", "write placeholder", path, err)
	}
	return Artifact{
		ChunkIndex:      chunk.Index,
		Path:            path,
		SampleRate:      clip.SampleRate,
		DurationSeconds: clip.Seconds(),
		Degraded:        degraded,
		Reason:          reason,
		Calls:           calls,
	}, nil
}

// DescribeFailure renders a degraded artifact's reason for reports.
func DescribeFailure(a Artifact) string {
	if !a.Degraded {
		return ""
	}
	return fmt.Sprintf("%s after %d calls", a.Reason, a.Calls)
}
