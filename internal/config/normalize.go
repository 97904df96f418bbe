package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTranscript()
	c.normalizeSynthesis()
	c.normalizeRotation()
	if err := c.normalizeTranslation(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeTranscript() {
	c.Transcript.MalformedPolicy = strings.ToLower(strings.TrimSpace(c.Transcript.MalformedPolicy))
	if c.Transcript.MalformedPolicy == "" {
		c.Transcript.MalformedPolicy = defaultMalformedPolicy
	}
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Provider = strings.ToLower(strings.TrimSpace(c.Synthesis.Provider))
	if c.Synthesis.Provider == "" {
		c.Synthesis.Provider = defaultSynthesisProvider
	}
	c.Synthesis.Voice = strings.TrimSpace(c.Synthesis.Voice)
	c.Synthesis.BaseURL = strings.TrimSpace(c.Synthesis.BaseURL)
	if c.Synthesis.BaseURL == "" && c.Synthesis.Provider == ProviderOpenAI {
		c.Synthesis.BaseURL = defaultOpenAIBaseURL
	}
	c.Synthesis.PiperBinary = strings.TrimSpace(c.Synthesis.PiperBinary)
	if c.Synthesis.PiperBinary == "" {
		c.Synthesis.PiperBinary = defaultPiperBinary
	}
	if dir := strings.TrimSpace(c.Synthesis.PiperModelDir); dir != "" {
		if expanded, err := expandPath(dir); err == nil {
			c.Synthesis.PiperModelDir = expanded
		}
	}
}

func (c *Config) normalizeRotation() {
	models := make([]string, 0, len(c.Rotation.Models))
	seen := make(map[string]struct{}, len(c.Rotation.Models))
	for _, model := range c.Rotation.Models {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		if _, ok := seen[model]; ok {
			continue
		}
		seen[model] = struct{}{}
		models = append(models, model)
	}
	c.Rotation.Models = models

	for i := range c.Rotation.Credentials {
		cred := &c.Rotation.Credentials[i]
		cred.ID = strings.TrimSpace(cred.ID)
		cred.APIKey = strings.TrimSpace(cred.APIKey)
		cred.APIKeyEnv = strings.TrimSpace(cred.APIKeyEnv)
		if cred.APIKey == "" && cred.APIKeyEnv != "" {
			if value, ok := os.LookupEnv(cred.APIKeyEnv); ok {
				cred.APIKey = strings.TrimSpace(value)
			}
		}
		if cred.ID == "" {
			cred.ID = fmt.Sprintf("credential-%d", i+1)
		}
	}

	switch c.Synthesis.Provider {
	case ProviderOpenAI:
		if len(c.Rotation.Credentials) == 0 {
			if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok && strings.TrimSpace(value) != "" {
				c.Rotation.Credentials = []Credential{{ID: "default", APIKey: strings.TrimSpace(value)}}
			}
		}
	case ProviderPiper:
		if len(c.Rotation.Credentials) == 0 {
			c.Rotation.Credentials = []Credential{{ID: "local"}}
		}
	}
}

func (c *Config) normalizeTranslation() error {
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)
	if c.Translation.APIKey == "" {
		if value, ok := os.LookupEnv("DUBLINE_TRANSLATION_API_KEY"); ok {
			c.Translation.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.Translation.APIKey = strings.TrimSpace(value)
		}
	}
	c.Translation.BaseURL = strings.TrimSpace(c.Translation.BaseURL)
	if c.Translation.BaseURL == "" {
		c.Translation.BaseURL = defaultTranslationBaseURL
	}
	c.Translation.Model = strings.TrimSpace(c.Translation.Model)
	if c.Translation.Model == "" {
		c.Translation.Model = defaultTranslationModel
	}
	c.Translation.Tone = strings.TrimSpace(c.Translation.Tone)
	c.Translation.Formality = strings.ToLower(strings.TrimSpace(c.Translation.Formality))

	for _, field := range []*string{&c.Translation.TargetLanguage, &c.Translation.SourceLanguage} {
		value := strings.TrimSpace(*field)
		if value == "" {
			*field = ""
			continue
		}
		tag, err := language.Parse(value)
		if err != nil {
			return fmt.Errorf("translation language %q: %w", value, err)
		}
		*field = tag.String()
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	path := strings.TrimSpace(c.Metrics.TextfilePath)
	if path == "" {
		c.Metrics.TextfilePath = ""
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	c.Metrics.TextfilePath = expanded
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("DUBLINE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNotifyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
