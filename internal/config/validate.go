package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Secrets are not required here;
// collaborators that need them fail at construction so that offline commands
// (chunk previews, status) work without credentials.
func (c *Config) Validate() error {
	if err := c.validateChunking(); err != nil {
		return err
	}
	if err := c.validateTranscript(); err != nil {
		return err
	}
	if err := c.validateRotation(); err != nil {
		return err
	}
	if err := c.validateSynthesis(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateStitch(); err != nil {
		return err
	}
	if err := c.validateMux(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic: must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateChunking() error {
	ch := c.Chunking
	if ch.MaxChunkSeconds <= 0 {
		return errors.New("chunking.max_chunk_seconds must be positive")
	}
	if ch.MinChunkSeconds < 0 {
		return errors.New("chunking.min_chunk_seconds must be >= 0")
	}
	if ch.MinChunkSeconds > ch.MaxChunkSeconds {
		return errors.New("chunking.min_chunk_seconds must not exceed chunking.max_chunk_seconds")
	}
	if ch.LookbackSeconds < 0 {
		return errors.New("chunking.lookback_seconds must be >= 0")
	}
	if ch.MaxChars < 0 {
		return errors.New("chunking.max_chars must be >= 0 (0 disables the limit)")
	}
	return nil
}

func (c *Config) validateTranscript() error {
	switch c.Transcript.MalformedPolicy {
	case PolicyFix, PolicyStrict:
	default:
		return fmt.Errorf("transcript.malformed_policy must be %q or %q, got %q", PolicyFix, PolicyStrict, c.Transcript.MalformedPolicy)
	}
	if c.Transcript.OverlapToleranceMS < 0 {
		return errors.New("transcript.overlap_tolerance_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateRotation() error {
	if len(c.Rotation.Models) == 0 {
		return errors.New("rotation.models must list at least one model")
	}
	seen := make(map[string]struct{}, len(c.Rotation.Credentials))
	for _, cred := range c.Rotation.Credentials {
		if _, ok := seen[cred.ID]; ok {
			return fmt.Errorf("rotation.credentials: duplicate id %q", cred.ID)
		}
		seen[cred.ID] = struct{}{}
	}
	if c.Rotation.DefaultCooldownSeconds <= 0 {
		return errors.New("rotation.default_cooldown_seconds must be positive")
	}
	if c.Rotation.ThrottleCooldownSeconds < 0 {
		return errors.New("rotation.throttle_cooldown_seconds must be >= 0")
	}
	if c.Rotation.MaxCooldownWaitSeconds < 0 {
		return errors.New("rotation.max_cooldown_wait_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateSynthesis() error {
	s := c.Synthesis
	switch s.Provider {
	case ProviderOpenAI, ProviderPiper:
	default:
		return fmt.Errorf("synthesis.provider: unsupported value %q", s.Provider)
	}
	if s.Provider == ProviderPiper && strings.TrimSpace(s.PiperModelDir) == "" {
		return errors.New("synthesis.piper_model_dir must be set when synthesis.provider is piper")
	}
	if err := ensurePositiveMap(map[string]int{
		"synthesis.workers":                    s.Workers,
		"synthesis.attempts_per_pair":          s.AttemptsPerPair,
		"synthesis.request_timeout_seconds":    s.RequestTimeoutSeconds,
		"synthesis.per_credential_concurrency": s.PerCredentialConcurrency,
		"synthesis.amplitude_window_ms":        s.AmplitudeWindowMS,
	}); err != nil {
		return err
	}
	if s.BackoffBaseMS < 0 || s.BackoffMaxMS < 0 {
		return errors.New("synthesis backoff values must be >= 0")
	}
	if s.BackoffMaxMS > 0 && s.BackoffBaseMS > s.BackoffMaxMS {
		return errors.New("synthesis.backoff_base_ms must not exceed synthesis.backoff_max_ms")
	}
	if s.MinRequestIntervalMS < 0 {
		return errors.New("synthesis.min_request_interval_ms must be >= 0")
	}
	if s.AmplitudePeakThreshold < 0 || s.AmplitudePeakThreshold > 1 {
		return errors.New("synthesis.amplitude_peak_threshold must be between 0 and 1")
	}
	if s.AmplitudeRMSThreshold < 0 || s.AmplitudeRMSThreshold > 1 {
		return errors.New("synthesis.amplitude_rms_threshold must be between 0 and 1")
	}
	if s.Provider == ProviderPiper && s.PiperSampleRate <= 0 {
		return errors.New("synthesis.piper_sample_rate must be positive")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if !c.Translation.Enabled {
		return nil
	}
	if c.Translation.TargetLanguage == "" {
		return errors.New("translation.target_language must be set when translation.enabled is true")
	}
	if c.Translation.TimeoutSeconds <= 0 {
		return errors.New("translation.timeout_seconds must be positive")
	}
	if c.Translation.RetryAttempts <= 0 {
		return errors.New("translation.retry_attempts must be positive")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	r := c.Reconcile
	if r.MinSpeedFactor <= 0 || r.MinSpeedFactor > 1 {
		return errors.New("reconcile.min_speed_factor must be in (0, 1]")
	}
	if r.MaxSpeedFactor < 1 {
		return errors.New("reconcile.max_speed_factor must be >= 1")
	}
	if r.EpsilonMS < 0 {
		return errors.New("reconcile.epsilon_ms must be >= 0")
	}
	if r.CommandTimeoutSeconds <= 0 {
		return errors.New("reconcile.command_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateMux() error {
	if c.Mux.TimeoutSeconds <= 0 {
		return errors.New("mux.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateStitch() error {
	if c.Stitch.SampleRate <= 0 {
		return errors.New("stitch.sample_rate must be positive")
	}
	if c.Stitch.FadeMS < 0 {
		return errors.New("stitch.fade_ms must be >= 0")
	}
	if c.Stitch.GapToleranceMS < 0 {
		return errors.New("stitch.gap_tolerance_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json", "auto":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return errors.New("logging.max_size_mb and logging.max_backups must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
