package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"dubline/internal/audio"
	"dubline/internal/config"
	"dubline/internal/ledger"
	"dubline/internal/pipeline"
	"dubline/internal/synth"
	"dubline/internal/testsupport"
	"dubline/internal/translate"
)

type cliTestEnv struct {
	cfg            *config.Config
	configPath     string
	transcriptPath string
	baseDir        string
	synth          *fakeSynth
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(), testsupport.WithChunking(3, 1, 1))
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	configPath := filepath.Join(homeDir, ".config", "dubline", "config.toml")
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, configPath, cfg)

	transcriptPath := testsupport.WriteText(t, filepath.Join(base, "talk.json"), `[
  {"start": 0, "end": 2, "text": "Hello there."},
  {"start": 2.5, "end": 4.5, "text": "How are you?"},
  {"start": 6, "end": 9, "text": "Fine, thanks."}
]`)

	env := &cliTestEnv{
		cfg:            cfg,
		configPath:     configPath,
		transcriptPath: transcriptPath,
		baseDir:        base,
		synth:          &fakeSynth{},
	}
	useFakeEngine(t, env.synth)
	return env
}

// useFakeEngine swaps the production collaborators for in-process fakes.
func useFakeEngine(t *testing.T, s *fakeSynth) {
	t.Helper()
	previous := newEngine
	newEngine = func(cfg *config.Config, logger *slog.Logger) (*pipeline.Engine, error) {
		store, err := ledger.Open(cfg.Paths.LedgerPath)
		if err != nil {
			return nil, err
		}
		t.Cleanup(func() { _ = store.Close() })
		return pipeline.New(cfg, pipeline.Dependencies{
			Synthesizer: s,
			Translator:  translate.Passthrough{},
			Stretcher:   resampleStretcher{},
			Ledger:      store,
			Logger:      logger,
		})
	}
	t.Cleanup(func() { newEngine = previous })
}

type fakeSynth struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeSynth) Name() string { return "fake" }

func (f *fakeSynth) Synthesize(context.Context, synth.Request) (synth.Audio, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	clip := audio.Sine(24000, 220, 0.5, time.Second)
	return synth.Audio{PCM: clip.PCM16LE(), SampleRate: 24000, Channels: 1}, nil
}

func (f *fakeSynth) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type resampleStretcher struct{}

func (resampleStretcher) Stretch(_ context.Context, in, out string, factor float64, _ int) error {
	clip, err := audio.ReadWAV(in)
	if err != nil {
		return err
	}
	rate := clip.SampleRate
	stretched := audio.Resample(clip, int(math.Round(float64(rate)/factor)))
	stretched.SampleRate = rate
	return audio.WriteWAV(out, stretched)
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
work_dir = %q
log_dir = %q
ledger_path = %q

[chunking]
max_chunk_seconds = %g
min_chunk_seconds = %g
lookback_seconds = %g

[rotation]
models = ["tts-1"]

[[rotation.credentials]]
id = "primary"
api_key = "test-key"

[synthesis]
workers = 1
attempts_per_pair = 1
backoff_base_ms = 1
backoff_max_ms = 2
min_request_interval_ms = 0

[translation]
enabled = false

[logging]
format = "json"
level = "error"
`,
		cfg.Paths.WorkDir,
		cfg.Paths.LogDir,
		cfg.Paths.LedgerPath,
		cfg.Chunking.MaxChunkSeconds,
		cfg.Chunking.MinChunkSeconds,
		cfg.Chunking.LookbackSeconds,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
