package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"dubline/internal/logging"
	"dubline/internal/services"
)

const (
	piperProvider          = "piper"
	defaultPiperSampleRate = 22050
)

// PipeRunner runs name with stdin and returns stdout.
type PipeRunner func(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)

// Piper synthesizes with a local piper binary. The pair's model names a
// <model>.onnx voice in the model directory; credentials are ignored.
type Piper struct {
	binary     string
	modelDir   string
	sampleRate int
	run        PipeRunner
	logger     *slog.Logger
}

// NewPiper returns a local provider.
func NewPiper(binary, modelDir string, sampleRate int, logger *slog.Logger) *Piper {
	if strings.TrimSpace(binary) == "" {
		binary = "piper"
	}
	if sampleRate <= 0 {
		sampleRate = defaultPiperSampleRate
	}
	return &Piper{
		binary:     binary,
		modelDir:   modelDir,
		sampleRate: sampleRate,
		run:        defaultPipeRunner,
		logger:     logging.NewComponentLogger(logger, "piper"),
	}
}

// WithRunner swaps the command runner (tests).
func (p *Piper) WithRunner(r PipeRunner) *Piper {
	if r != nil {
		p.run = r
	}
	return p
}

func (p *Piper) Name() string { return piperProvider }

// ModelPath returns the voice file for model.
func (p *Piper) ModelPath(model string) string {
	name := strings.TrimSpace(model)
	if !strings.HasSuffix(name, ".onnx") {
		name += ".onnx"
	}
	return filepath.Join(p.modelDir, name)
}

// Synthesize runs piper once for req.
func (p *Piper) Synthesize(ctx context.Context, req Request) (Audio, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Audio{}, services.Wrap(services.ErrValidation, "synth", "piper", "empty text", nil)
	}
	modelPath := p.ModelPath(req.Model)
	if _, err := os.Stat(modelPath); err != nil {
		// A missing voice can never succeed; disable the pair.
		return Audio{}, &services.ProviderError{
			Marker:   services.ErrInvalidCredential,
			Provider: piperProvider,
			Message:  fmt.Sprintf("voice model %s unavailable", modelPath),
			Err:      err,
		}
	}
	args := []string{"--model", modelPath, "--output_raw"}
	if speaker, err := strconv.Atoi(strings.TrimSpace(req.Voice)); err == nil && speaker >= 0 {
		args = append(args, "--speaker", strconv.Itoa(speaker))
	}
	p.logger.Debug("piper synthesis", logging.String("model", req.Model), logging.Int("chars", len(text)))
	out, err := p.run(ctx, strings.NewReader(text+"\n"), p.binary, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Audio{}, &services.ProviderError{Marker: services.ErrTimeout, Provider: piperProvider, Err: err}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return Audio{}, &services.ProviderError{
				Marker:   services.ErrConfiguration,
				Provider: piperProvider,
				Message:  fmt.Sprintf("binary %q not found", p.binary),
				Err:      err,
			}
		}
		return Audio{}, services.Wrap(services.ErrExternalTool, "synth", "piper", "command failed", err)
	}
	return Audio{PCM: out, SampleRate: p.sampleRate, Channels: 1}, nil
}

func defaultPipeRunner(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stdin = stdin
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %w", ctxErr, err)
		}
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
