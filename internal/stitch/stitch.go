package stitch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"dubline/internal/audio"
	"dubline/internal/chunker"
	"dubline/internal/logging"
	"dubline/internal/services"
	"dubline/internal/synthesis"
)

const (
	defaultSampleRate   = 24000
	defaultFade         = 20 * time.Millisecond
	defaultGapTolerance = 10 * time.Millisecond
)

// Options configure a Stitcher.
type Options struct {
	SampleRate int
	// Fade zero uses the default; negative disables fades.
	Fade         time.Duration
	GapTolerance time.Duration
	Logger       *slog.Logger
}

// Shift records a chunk placed later than its start because the previous
// chunk overran.
type Shift struct {
	ChunkIndex int     `json:"chunk_index"`
	Seconds    float64 `json:"seconds"`
}

// Result describes the stitched track.
type Result struct {
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Chunks          int     `json:"chunks"`
	SilenceSeconds  float64 `json:"silence_seconds"`
	Shifts          []Shift `json:"shifts,omitempty"`
	// TrimmedSeconds is overrun audio cut at the track end.
	TrimmedSeconds float64 `json:"trimmed_seconds,omitempty"`
}

// Stitcher concatenates artifacts.
type Stitcher struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Stitcher with defaults applied.
func New(opts Options) *Stitcher {
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if opts.Fade < 0 {
		opts.Fade = 0
	} else if opts.Fade == 0 {
		opts.Fade = defaultFade
	}
	if opts.GapTolerance < 0 {
		opts.GapTolerance = defaultGapTolerance
	}
	return &Stitcher{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "stitch")}
}

// Stitch writes the track for chunks to out. Every chunk must have an artifact.
func (s *Stitcher) Stitch(ctx context.Context, chunks []chunker.Chunk, artifacts map[int]synthesis.Artifact, out string) (Result, error) {
	if len(chunks) == 0 {
		return Result{}, services.Wrap(services.ErrValidation, "stitch", "input", "no chunks to stitch", nil)
	}
	ordered := append([]chunker.Chunk(nil), chunks...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	rate := s.opts.SampleRate
	tolerance := audio.SamplesFor(s.opts.GapTolerance, rate)
	total := audio.SamplesForSeconds(ordered[len(ordered)-1].End, rate)
	track := make([]int16, 0, total)
	result := Result{Path: out, SampleRate: rate, Chunks: len(ordered)}
	silence := 0

	for _, chunk := range ordered {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		artifact, ok := artifacts[chunk.Index]
		if !ok {
			return Result{}, services.Wrap(services.ErrNotFound, "stitch", "artifact",
				fmt.Sprintf("no artifact for chunk %d", chunk.Index), nil)
		}
		clip, err := audio.ReadWAV(artifact.Path)
		if err != nil {
			return Result{}, services.Wrap(services.ErrNotFound, "stitch", "read artifact", artifact.Path, err)
		}
		if clip.SampleRate != rate {
			clip = audio.Resample(clip, rate)
		}
		clip = audio.FadeEdges(clip, s.opts.Fade)

		start := audio.SamplesForSeconds(chunk.Start, rate)
		cursor := len(track)
		switch gap := start - cursor; {
		case gap > tolerance:
			track = append(track, make([]int16, gap)...)
			silence += gap
		case gap < 0:
			result.Shifts = append(result.Shifts, Shift{
				ChunkIndex: chunk.Index,
				Seconds:    float64(-gap) / float64(rate),
			})
		}
		track = append(track, clip.Samples...)
	}

	final := audio.Clip{Samples: track, SampleRate: rate}
	switch {
	case len(track) < total:
		silence += total - len(track)
		final = final.FitLength(total)
	case len(track) > total:
		result.TrimmedSeconds = float64(len(track)-total) / float64(rate)
		final = audio.FadeOutTail(final.FitLength(total), s.opts.Fade)
	}
	if err := audio.WriteWAV(out, final); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "stitch", "write track", out, err)
	}
	result.DurationSeconds = final.Seconds()
	result.SilenceSeconds = float64(silence) / float64(rate)

	if len(result.Shifts) > 0 || result.TrimmedSeconds > 0 {
		logging.WarnWithContext(s.logger, "stitched track has shifted chunks", "stitch_drift",
			logging.Int("shifted_chunks", len(result.Shifts)),
			logging.Seconds("trimmed_seconds", result.TrimmedSeconds),
			logging.String(logging.FieldErrorHint, "overlong translations overran their slots"),
			logging.String(logging.FieldImpact, "some speech starts later than the original"),
		)
	}
	s.logger.Info("track stitched",
		logging.String("path", out),
		logging.Seconds("duration_seconds", result.DurationSeconds),
		logging.Int("chunks", result.Chunks),
		logging.Seconds("silence_seconds", result.SilenceSeconds),
	)
	return result, nil
}
