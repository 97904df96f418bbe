package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dubline/internal/language"
	"dubline/internal/logging"
	"dubline/internal/media/ffprobe"
	"dubline/internal/services"
)

const probeTimeout = 30 * time.Second

// MuxOptions configures the output audio encoding.
type MuxOptions struct {
	Binary       string
	AudioCodec   string
	AudioBitrate string
	// Timeout bounds the ffmpeg invocation; zero leaves it unbounded.
	Timeout time.Duration
}

// MuxRequest describes one audio replacement.
type MuxRequest struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
	// Language tags the dubbed stream; empty leaves it untagged.
	Language string
}

// MuxResult reports the muxed container.
type MuxResult struct {
	OutputPath    string  `json:"output_path"`
	VideoSeconds  float64 `json:"video_seconds"`
	AudioSeconds  float64 `json:"audio_seconds"`
	OutputSeconds float64 `json:"output_seconds"`
}

// Muxer replaces a video's audio track, trimming to the shorter input.
type Muxer struct {
	opts   MuxOptions
	probe  *ffprobe.Prober
	logger *slog.Logger
	run    commandRunner
}

// NewMuxer constructs a muxer. probe may be nil, which skips duration checks.
func NewMuxer(opts MuxOptions, probe *ffprobe.Prober, logger *slog.Logger) *Muxer {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.AudioCodec) == "" {
		opts.AudioCodec = "aac"
	}
	return &Muxer{
		opts:   opts,
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "muxer"),
		run:    defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (m *Muxer) WithCommandRunner(r commandRunner) {
	if m != nil && r != nil {
		m.run = r
	}
}

// Mux writes OutputPath with the video stream of VideoPath (copied) and the
// audio of AudioPath (encoded). The output is created atomically.
func (m *Muxer) Mux(ctx context.Context, req MuxRequest) (MuxResult, error) {
	if m == nil {
		return MuxResult{}, fmt.Errorf("muxer not initialized")
	}
	inputs := []struct{ label, path string }{{"video", req.VideoPath}, {"audio", req.AudioPath}}
	for _, in := range inputs {
		if strings.TrimSpace(in.path) == "" {
			return MuxResult{}, services.Wrap(services.ErrValidation, "mux", "request", in.label+" path is required", nil)
		}
	}
	for _, in := range inputs {
		if _, err := os.Stat(in.path); err != nil {
			return MuxResult{}, services.Wrap(services.ErrNotFound, "mux", "request", in.label+" input missing", err)
		}
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return MuxResult{}, services.Wrap(services.ErrValidation, "mux", "request", "output path is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return MuxResult{}, fmt.Errorf("ensure output directory: %w", err)
	}

	tmpPath := filepath.Join(filepath.Dir(req.OutputPath), ".mux-"+filepath.Base(req.OutputPath))
	args := m.buildArgs(req, tmpPath)

	m.logger.Debug("executing ffmpeg mux",
		logging.String("video_path", req.VideoPath),
		logging.String("audio_path", req.AudioPath),
		logging.String("output_path", req.OutputPath),
	)
	if err := runBounded(ctx, m.run, m.opts.Timeout, "mux", "ffmpeg", m.opts.Binary, args...); err != nil {
		_ = os.Remove(tmpPath)
		return MuxResult{}, err
	}
	if _, err := os.Stat(tmpPath); err != nil {
		return MuxResult{}, services.Wrap(services.ErrExternalTool, "mux", "ffmpeg", "no output produced", err)
	}
	if err := os.Rename(tmpPath, req.OutputPath); err != nil {
		_ = os.Remove(tmpPath)
		return MuxResult{}, fmt.Errorf("replace mux output: %w", err)
	}

	result := MuxResult{OutputPath: req.OutputPath}
	m.inspectDurations(ctx, req, &result)
	m.logger.Info("dubbed audio muxed into video",
		logging.String(logging.FieldEventType, "mux_complete"),
		logging.String("output_path", req.OutputPath),
		logging.Seconds("video_seconds", result.VideoSeconds),
		logging.Seconds("audio_seconds", result.AudioSeconds),
		logging.Seconds("output_seconds", result.OutputSeconds),
	)
	return result, nil
}

func (m *Muxer) buildArgs(req MuxRequest, outputPath string) []string {
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", req.VideoPath,
		"-i", req.AudioPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", m.opts.AudioCodec,
	}
	if bitrate := strings.TrimSpace(m.opts.AudioBitrate); bitrate != "" {
		args = append(args, "-b:a", bitrate)
	}
	if lang := strings.TrimSpace(req.Language); lang != "" {
		args = append(args,
			"-metadata:s:a:0", "language="+language.ToISO3(lang),
			"-metadata:s:a:0", "title="+language.DisplayName(lang)+" (dub)",
		)
	}
	return append(args, "-shortest", outputPath)
}

func (m *Muxer) inspectDurations(ctx context.Context, req MuxRequest, result *MuxResult) {
	if m.probe == nil {
		return
	}
	probe := func(path string) float64 {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		res, err := m.probe.Inspect(probeCtx, path)
		if err != nil {
			m.logger.Debug("ffprobe failed", logging.String("path", path), logging.Error(err))
			return 0
		}
		return res.DurationSeconds()
	}
	result.VideoSeconds = probe(req.VideoPath)
	result.AudioSeconds = probe(req.AudioPath)
	result.OutputSeconds = probe(req.OutputPath)

	shorter := math.Min(result.VideoSeconds, result.AudioSeconds)
	if shorter > 0 && result.OutputSeconds > 0 && math.Abs(result.OutputSeconds-shorter) > 1 {
		logging.WarnWithContext(m.logger, "muxed duration differs from shorter input", "mux_duration_mismatch",
			logging.Seconds("expected_seconds", shorter),
			logging.Seconds("output_seconds", result.OutputSeconds),
			logging.String(logging.FieldErrorHint, "inspect the output container"),
		)
	}
}
