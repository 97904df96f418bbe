package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dubline/internal/config"
)

func TestLoadDefaultConfigUsesEnvKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("OPENROUTER_API_KEY", "or-env")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "dubline", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if len(cfg.Rotation.Credentials) != 1 || cfg.Rotation.Credentials[0].APIKey != "sk-env" {
		t.Fatalf("expected default credential from env, got %+v", cfg.Rotation.Credentials)
	}
	if cfg.Translation.APIKey != "or-env" {
		t.Fatalf("expected translation key from env, got %q", cfg.Translation.APIKey)
	}
	if cfg.Synthesis.Provider != config.ProviderOpenAI {
		t.Fatalf("unexpected provider: %q", cfg.Synthesis.Provider)
	}
	if got := cfg.Chunking.MaxChunkDuration(); got != 12*time.Second {
		t.Fatalf("unexpected max chunk duration: %s", got)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.LedgerPath)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SECOND_KEY", "sk-second")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "dubline.toml")

	body := `
[rotation]
models = ["tts-1", " tts-1 ", "tts-1-hd"]

[[rotation.credentials]]
id = "first"
api_key = "sk-first"

[[rotation.credentials]]
id = "second"
api_key_env = "SECOND_KEY"

[synthesis]
provider = "OpenAI"
workers = 8

[translation]
target_language = "pt-br"
`
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if got := strings.Join(cfg.Rotation.Models, ","); got != "tts-1,tts-1-hd" {
		t.Fatalf("expected deduplicated models, got %q", got)
	}
	keys := cfg.CredentialKeys()
	if keys["first"] != "sk-first" || keys["second"] != "sk-second" {
		t.Fatalf("unexpected credential keys: %v", keys)
	}
	if ids := cfg.CredentialIDs(); len(ids) != 2 || ids[0] != "first" {
		t.Fatalf("unexpected credential order: %v", ids)
	}
	if cfg.Synthesis.Provider != "openai" {
		t.Fatalf("expected provider lowercased, got %q", cfg.Synthesis.Provider)
	}
	if cfg.Synthesis.Workers != 8 {
		t.Fatalf("expected workers override, got %d", cfg.Synthesis.Workers)
	}
	if cfg.Translation.TargetLanguage != "pt-BR" {
		t.Fatalf("expected canonical language tag, got %q", cfg.Translation.TargetLanguage)
	}
}

func TestLoadRejectsInvalidLanguage(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dubline.toml")
	if err := os.WriteFile(configPath, []byte("[translation]\ntarget_language = \"not a tag!\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected invalid language tag to fail")
	}
}

func TestPiperProviderGetsLocalCredential(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "dubline.toml")
	body := "[rotation]\nmodels = [\"en_US-lessac-medium.onnx\"]\n[synthesis]\nprovider = \"piper\"\npiper_model_dir = \"/opt/piper\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if ids := cfg.CredentialIDs(); len(ids) != 1 || ids[0] != "local" {
		t.Fatalf("expected local credential, got %v", ids)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "OPENAI_API_KEY") {
		t.Fatalf("sample config missing credential env hint: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.WorkDir, "dubline") {
		t.Fatalf("expected work dir to contain dubline, got %q", cfg.Paths.WorkDir)
	}
	if cfg.Reconcile.MaxSpeedFactor != config.Default().Reconcile.MaxSpeedFactor {
		t.Fatalf("sample max speed factor drifted from default: %v", cfg.Reconcile.MaxSpeedFactor)
	}
	if cfg.Reconcile.CommandTimeoutSeconds <= 0 || cfg.Mux.TimeoutSeconds <= 0 {
		t.Fatalf("sample should bound ffmpeg calls: reconcile=%d mux=%d", cfg.Reconcile.CommandTimeoutSeconds, cfg.Mux.TimeoutSeconds)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"min above max chunk", func(c *config.Config) { c.Chunking.MinChunkSeconds = c.Chunking.MaxChunkSeconds + 1 }},
		{"zero max chunk", func(c *config.Config) { c.Chunking.MaxChunkSeconds = 0 }},
		{"unknown policy", func(c *config.Config) { c.Transcript.MalformedPolicy = "guess" }},
		{"no models", func(c *config.Config) { c.Rotation.Models = nil }},
		{"duplicate credentials", func(c *config.Config) {
			c.Rotation.Credentials = []config.Credential{{ID: "a"}, {ID: "a"}}
		}},
		{"unknown provider", func(c *config.Config) { c.Synthesis.Provider = "robot" }},
		{"zero workers", func(c *config.Config) { c.Synthesis.Workers = 0 }},
		{"peak threshold above full scale", func(c *config.Config) { c.Synthesis.AmplitudePeakThreshold = 1.5 }},
		{"max speed below one", func(c *config.Config) { c.Reconcile.MaxSpeedFactor = 0.9 }},
		{"min speed above one", func(c *config.Config) { c.Reconcile.MinSpeedFactor = 1.1 }},
		{"unbounded stretch command", func(c *config.Config) { c.Reconcile.CommandTimeoutSeconds = 0 }},
		{"unbounded mux", func(c *config.Config) { c.Mux.TimeoutSeconds = 0 }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
		{"translation without target", func(c *config.Config) { c.Translation.TargetLanguage = "" }},
		{"ntfy topic without scheme", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/dubs" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
