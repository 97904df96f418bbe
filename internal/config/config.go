package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir    string `toml:"work_dir"`
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// Chunking controls how transcript segments are grouped before translation.
type Chunking struct {
	MaxChunkSeconds float64 `toml:"max_chunk_seconds"`
	MinChunkSeconds float64 `toml:"min_chunk_seconds"`
	LookbackSeconds float64 `toml:"lookback_seconds"`
	MaxChars        int     `toml:"max_chars"`
}

// Transcript controls how malformed transcript input is handled.
type Transcript struct {
	// MalformedPolicy is "fix" (sort and trim overlaps) or "strict" (reject).
	MalformedPolicy    string `toml:"malformed_policy"`
	OverlapToleranceMS int    `toml:"overlap_tolerance_ms"`
}

// Credential is one access credential in the rotation pool.
type Credential struct {
	ID        string `toml:"id"`
	APIKey    string `toml:"api_key"`
	APIKeyEnv string `toml:"api_key_env"`
}

// Rotation describes the credential/model pool used for synthesis.
type Rotation struct {
	// Models are listed in priority order; each model is tried with every
	// credential before moving to the next model.
	Models                  []string     `toml:"models"`
	Credentials             []Credential `toml:"credentials"`
	DefaultCooldownSeconds  int          `toml:"default_cooldown_seconds"`
	ThrottleCooldownSeconds int          `toml:"throttle_cooldown_seconds"`
	MaxCooldownWaitSeconds  int          `toml:"max_cooldown_wait_seconds"`
}

// Synthesis contains text-to-speech driver settings.
type Synthesis struct {
	Provider                 string  `toml:"provider"`
	Voice                    string  `toml:"voice"`
	BaseURL                  string  `toml:"base_url"`
	Workers                  int     `toml:"workers"`
	AttemptsPerPair          int     `toml:"attempts_per_pair"`
	BackoffBaseMS            int     `toml:"backoff_base_ms"`
	BackoffMaxMS             int     `toml:"backoff_max_ms"`
	RequestTimeoutSeconds    int     `toml:"request_timeout_seconds"`
	PerCredentialConcurrency int     `toml:"per_credential_concurrency"`
	MinRequestIntervalMS     int     `toml:"min_request_interval_ms"`
	AmplitudePeakThreshold   float64 `toml:"amplitude_peak_threshold"`
	AmplitudeRMSThreshold    float64 `toml:"amplitude_rms_threshold"`
	AmplitudeWindowMS        int     `toml:"amplitude_window_ms"`
	PiperBinary              string  `toml:"piper_binary"`
	PiperModelDir            string  `toml:"piper_model_dir"`
	PiperSampleRate          int     `toml:"piper_sample_rate"`
}

// Translation contains the translator collaborator settings.
type Translation struct {
	Enabled        bool              `toml:"enabled"`
	APIKey         string            `toml:"api_key"`
	BaseURL        string            `toml:"base_url"`
	Model          string            `toml:"model"`
	Referer        string            `toml:"referer"`
	Title          string            `toml:"title"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	RetryAttempts  int               `toml:"retry_attempts"`
	SourceLanguage string            `toml:"source_language"`
	TargetLanguage string            `toml:"target_language"`
	Tone           string            `toml:"tone"`
	Formality      string            `toml:"formality"`
	Glossary       map[string]string `toml:"glossary"`
}

// Reconcile bounds the time-stretch applied to generated audio.
type Reconcile struct {
	MinSpeedFactor float64 `toml:"min_speed_factor"`
	MaxSpeedFactor float64 `toml:"max_speed_factor"`
	EpsilonMS      int     `toml:"epsilon_ms"`
	// CommandTimeoutSeconds bounds one ffmpeg atempo invocation.
	CommandTimeoutSeconds int `toml:"command_timeout_seconds"`
}

// Stitch controls final track assembly.
type Stitch struct {
	SampleRate     int `toml:"sample_rate"`
	FadeMS         int `toml:"fade_ms"`
	GapToleranceMS int `toml:"gap_tolerance_ms"`
}

// Mux contains the external media tool settings.
type Mux struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	AudioCodec    string `toml:"audio_codec"`
	AudioBitrate  string `toml:"audio_bitrate"`
	// TimeoutSeconds bounds the ffmpeg mux invocation.
	TimeoutSeconds int `toml:"timeout_seconds"`
}

// Notifications controls run-completion alerts.
type Notifications struct {
	// NtfyTopic is the full ntfy topic URL; empty disables notifications.
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Metrics controls Prometheus textfile export.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	MaxSizeMB     int    `toml:"max_size_mb"`
	MaxBackups    int    `toml:"max_backups"`
}

// Config encapsulates all configuration values for dubline.
//
// Configuration sections by subsystem:
//   - Paths: work directory, logs, run ledger
//   - Chunking / Transcript: segment grouping and input policy
//   - Rotation: credential/model pool and cooldowns
//   - Synthesis: TTS provider, retries, rate limits, silence detection
//   - Translation: chat-completion translator and style
//   - Reconcile / Stitch: timing fit and final assembly
//   - Mux: ffmpeg/ffprobe
//   - Notifications: ntfy alerts when a run finishes
//   - Metrics / Logging: observability
type Config struct {
	Paths         Paths         `toml:"paths"`
	Chunking      Chunking      `toml:"chunking"`
	Transcript    Transcript    `toml:"transcript"`
	Rotation      Rotation      `toml:"rotation"`
	Synthesis     Synthesis     `toml:"synthesis"`
	Translation   Translation   `toml:"translation"`
	Reconcile     Reconcile     `toml:"reconcile"`
	Stitch        Stitch        `toml:"stitch"`
	Mux           Mux           `toml:"mux"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("dubline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the work and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if ledgerDir := filepath.Dir(c.Paths.LedgerPath); strings.TrimSpace(c.Paths.LedgerPath) != "" {
		if err := os.MkdirAll(ledgerDir, 0o755); err != nil {
			return fmt.Errorf("create ledger directory %q: %w", ledgerDir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for stretching and muxing.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.Mux.FFmpegBinary); bin != "" {
		return bin
	}
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Mux.FFprobeBinary); bin != "" {
		return bin
	}
	return "ffprobe"
}

// CredentialKeys maps credential IDs to their resolved secrets.
func (c *Config) CredentialKeys() map[string]string {
	keys := make(map[string]string, len(c.Rotation.Credentials))
	for _, cred := range c.Rotation.Credentials {
		keys[cred.ID] = cred.APIKey
	}
	return keys
}

// CredentialIDs returns credential identifiers in configured order.
func (c *Config) CredentialIDs() []string {
	ids := make([]string, 0, len(c.Rotation.Credentials))
	for _, cred := range c.Rotation.Credentials {
		ids = append(ids, cred.ID)
	}
	return ids
}

// MaxChunkDuration returns chunking.max_chunk_seconds as a duration.
func (c Chunking) MaxChunkDuration() time.Duration { return seconds(c.MaxChunkSeconds) }

// MinChunkDuration returns chunking.min_chunk_seconds as a duration.
func (c Chunking) MinChunkDuration() time.Duration { return seconds(c.MinChunkSeconds) }

// LookbackWindow returns chunking.lookback_seconds as a duration.
func (c Chunking) LookbackWindow() time.Duration { return seconds(c.LookbackSeconds) }

// OverlapTolerance returns transcript.overlap_tolerance_ms as a duration.
func (t Transcript) OverlapTolerance() time.Duration { return millis(t.OverlapToleranceMS) }

// DefaultCooldown returns the cooldown applied when a provider gives no reset hint.
func (r Rotation) DefaultCooldown() time.Duration {
	return time.Duration(r.DefaultCooldownSeconds) * time.Second
}

// ThrottleCooldown returns the cooldown applied to a throttled credential.
func (r Rotation) ThrottleCooldown() time.Duration {
	return time.Duration(r.ThrottleCooldownSeconds) * time.Second
}

// MaxCooldownWait bounds how long a chunk may wait for a cooling pair.
func (r Rotation) MaxCooldownWait() time.Duration {
	return time.Duration(r.MaxCooldownWaitSeconds) * time.Second
}

// RequestTimeout bounds a single synthesis call.
func (s Synthesis) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

// BackoffBase returns the first retry delay.
func (s Synthesis) BackoffBase() time.Duration { return millis(s.BackoffBaseMS) }

// BackoffMax caps retry delays.
func (s Synthesis) BackoffMax() time.Duration { return millis(s.BackoffMaxMS) }

// MinRequestInterval returns the minimum spacing between calls on one credential.
func (s Synthesis) MinRequestInterval() time.Duration { return millis(s.MinRequestIntervalMS) }

// AmplitudeWindow returns the RMS analysis window.
func (s Synthesis) AmplitudeWindow() time.Duration { return millis(s.AmplitudeWindowMS) }

// Epsilon returns the reconcile tolerance.
func (r Reconcile) Epsilon() time.Duration { return millis(r.EpsilonMS) }

// CommandTimeout bounds each time-stretch command.
func (r Reconcile) CommandTimeout() time.Duration {
	return time.Duration(r.CommandTimeoutSeconds) * time.Second
}

// Timeout bounds the mux command.
func (m Mux) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// Fade returns the edge fade length.
func (s Stitch) Fade() time.Duration { return millis(s.FadeMS) }

// GapTolerance returns the largest gap that is not filled with silence.
func (s Stitch) GapTolerance() time.Duration { return millis(s.GapToleranceMS) }

// RequestTimeout returns notifications.request_timeout_seconds as a duration.
func (n Notifications) RequestTimeout() time.Duration {
	return time.Duration(n.RequestTimeoutSeconds) * time.Second
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func millis(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
