package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"dubline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The rotation pool holds one model and one credential, synthesis runs on a
// single worker without retries, and translation is disabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "ledger.db")
	cfgVal.Rotation.Models = []string{"tts-1"}
	cfgVal.Rotation.Credentials = []config.Credential{{ID: "primary", APIKey: "test-key"}}
	cfgVal.Rotation.MaxCooldownWaitSeconds = 0
	cfgVal.Synthesis.Workers = 1
	cfgVal.Synthesis.AttemptsPerPair = 1
	cfgVal.Synthesis.BackoffBaseMS = 1
	cfgVal.Synthesis.BackoffMaxMS = 2
	cfgVal.Synthesis.MinRequestIntervalMS = 0
	cfgVal.Translation.Enabled = false
	cfgVal.Logging.Format = "json"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithPool replaces the rotation pool. Each credential gets a key equal to its ID.
func WithPool(models []string, credentialIDs ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Rotation.Models = models
		b.cfg.Rotation.Credentials = b.cfg.Rotation.Credentials[:0]
		for _, id := range credentialIDs {
			b.cfg.Rotation.Credentials = append(b.cfg.Rotation.Credentials, config.Credential{ID: id, APIKey: id})
		}
	}
}

// WithWorkers sets the synthesis worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Synthesis.Workers = n
	}
}

// WithChunking sets chunk bounds in seconds.
func WithChunking(maxSeconds, minSeconds, lookbackSeconds float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Chunking.MaxChunkSeconds = maxSeconds
		b.cfg.Chunking.MinChunkSeconds = minSeconds
		b.cfg.Chunking.LookbackSeconds = lookbackSeconds
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}
