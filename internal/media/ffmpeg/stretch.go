package ffmpeg

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dubline/internal/logging"
	"dubline/internal/services"
)

const (
	minAtempo = 0.5
	maxAtempo = 2.0
)

// Stretcher changes audio tempo without changing pitch.
type Stretcher struct {
	binary  string
	timeout time.Duration
	logger  *slog.Logger
	run     commandRunner
}

// NewStretcher returns a Stretcher using binary ("ffmpeg" when empty). Each
// call is bounded by timeout; zero leaves it bounded only by the caller.
func NewStretcher(binary string, timeout time.Duration, logger *slog.Logger) *Stretcher {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &Stretcher{
		binary:  binary,
		timeout: timeout,
		logger:  logging.NewComponentLogger(logger, "stretch"),
		run:     defaultCommandRunner,
	}
}

// WithCommandRunner allows injecting a custom command runner for tests.
func (s *Stretcher) WithCommandRunner(r commandRunner) {
	if s != nil && r != nil {
		s.run = r
	}
}

// Stretch writes in sped up by factor (factor > 1 shortens) to out as a
// mono 16-bit WAV at sampleRate.
func (s *Stretcher) Stretch(ctx context.Context, in, out string, factor float64, sampleRate int) error {
	if factor <= 0 {
		return services.Wrap(services.ErrValidation, "reconcile", "stretch", fmt.Sprintf("invalid factor %v", factor), nil)
	}
	tmp := filepath.Join(filepath.Dir(out), ".stretch-"+filepath.Base(out))
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", in,
		"-filter:a", AtempoFilter(factor),
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		tmp,
	}
	s.logger.Debug("executing ffmpeg atempo",
		logging.String("input", in),
		logging.Float64("factor", factor),
	)
	if err := runBounded(ctx, s.run, s.timeout, "reconcile", "ffmpeg atempo", s.binary, args...); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace stretched output: %w", err)
	}
	return nil
}

// AtempoFilter builds a filter chain whose product equals factor, keeping
// every stage inside atempo's supported range.
func AtempoFilter(factor float64) string {
	var stages []string
	for factor > maxAtempo {
		stages = append(stages, "atempo="+formatTempo(maxAtempo))
		factor /= maxAtempo
	}
	for factor < minAtempo {
		stages = append(stages, "atempo="+formatTempo(minAtempo))
		factor /= minAtempo
	}
	stages = append(stages, "atempo="+formatTempo(factor))
	return strings.Join(stages, ",")
}

func formatTempo(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
