package config

const (
	defaultConfigPath               = "~/.config/dubline/config.toml"
	defaultWorkDir                  = "~/.local/share/dubline/work"
	defaultLogDir                   = "~/.local/share/dubline/logs"
	defaultLedgerPath               = "~/.local/share/dubline/ledger.db"
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultLogRetentionDays         = 30
	defaultLogMaxSizeMB             = 50
	defaultLogMaxBackups            = 5
	defaultMaxChunkSeconds          = 12.0
	defaultMinChunkSeconds          = 2.0
	defaultLookbackSeconds          = 4.0
	defaultMaxChars                 = 400
	defaultMalformedPolicy          = PolicyFix
	defaultOverlapToleranceMS       = 250
	defaultCooldownSeconds          = 60
	defaultThrottleCooldownSeconds  = 10
	defaultMaxCooldownWaitSeconds   = 15
	defaultSynthesisProvider        = ProviderOpenAI
	defaultSynthesisVoice           = "alloy"
	defaultOpenAIBaseURL            = "https://api.openai.com/v1"
	defaultSynthesisWorkers         = 4
	defaultAttemptsPerPair          = 3
	defaultBackoffBaseMS            = 1000
	defaultBackoffMaxMS             = 10000
	defaultRequestTimeoutSeconds    = 120
	defaultPerCredentialConcurrency = 2
	defaultMinRequestIntervalMS     = 250
	defaultAmplitudePeakThreshold   = 0.01
	defaultAmplitudeRMSThreshold    = 0.003
	defaultAmplitudeWindowMS        = 50
	defaultPiperBinary              = "piper"
	defaultPiperSampleRate          = 22050
	defaultTranslationBaseURL       = "https://openrouter.ai/api/v1/chat/completions"
	defaultTranslationModel         = "google/gemini-3-flash-preview"
	defaultTranslationReferer       = "https://github.com/dubline/dubline"
	defaultTranslationTitle         = "dubline translator"
	defaultTranslationTimeout       = 60
	defaultTranslationRetries       = 5
	defaultTargetLanguage           = "es"
	defaultTone                     = "natural"
	defaultFormality                = "neutral"
	defaultMinSpeedFactor           = 0.8
	defaultMaxSpeedFactor           = 1.25
	defaultEpsilonMS                = 20
	defaultStitchSampleRate         = 24000
	defaultFadeMS                   = 20
	defaultGapToleranceMS           = 10
	defaultMuxAudioCodec            = "aac"
	defaultMuxAudioBitrate          = "192k"
	defaultStretchTimeoutSeconds    = 120
	defaultMuxTimeoutSeconds        = 1800
	defaultNotifyTimeoutSeconds     = 10
)

// Synthesis provider identifiers.
const (
	ProviderOpenAI = "openai"
	ProviderPiper  = "piper"
)

// Malformed transcript policies.
const (
	PolicyFix    = "fix"
	PolicyStrict = "strict"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:    defaultWorkDir,
			LogDir:     defaultLogDir,
			LedgerPath: defaultLedgerPath,
		},
		Chunking: Chunking{
			MaxChunkSeconds: defaultMaxChunkSeconds,
			MinChunkSeconds: defaultMinChunkSeconds,
			LookbackSeconds: defaultLookbackSeconds,
			MaxChars:        defaultMaxChars,
		},
		Transcript: Transcript{
			MalformedPolicy:    defaultMalformedPolicy,
			OverlapToleranceMS: defaultOverlapToleranceMS,
		},
		Rotation: Rotation{
			Models:                  []string{"gpt-4o-mini-tts", "tts-1-hd", "tts-1"},
			DefaultCooldownSeconds:  defaultCooldownSeconds,
			ThrottleCooldownSeconds: defaultThrottleCooldownSeconds,
			MaxCooldownWaitSeconds:  defaultMaxCooldownWaitSeconds,
		},
		Synthesis: Synthesis{
			Provider:                 defaultSynthesisProvider,
			Voice:                    defaultSynthesisVoice,
			BaseURL:                  defaultOpenAIBaseURL,
			Workers:                  defaultSynthesisWorkers,
			AttemptsPerPair:          defaultAttemptsPerPair,
			BackoffBaseMS:            defaultBackoffBaseMS,
			BackoffMaxMS:             defaultBackoffMaxMS,
			RequestTimeoutSeconds:    defaultRequestTimeoutSeconds,
			PerCredentialConcurrency: defaultPerCredentialConcurrency,
			MinRequestIntervalMS:     defaultMinRequestIntervalMS,
			AmplitudePeakThreshold:   defaultAmplitudePeakThreshold,
			AmplitudeRMSThreshold:    defaultAmplitudeRMSThreshold,
			AmplitudeWindowMS:        defaultAmplitudeWindowMS,
			PiperBinary:              defaultPiperBinary,
			PiperSampleRate:          defaultPiperSampleRate,
		},
		Translation: Translation{
			Enabled:        true,
			BaseURL:        defaultTranslationBaseURL,
			Model:          defaultTranslationModel,
			Referer:        defaultTranslationReferer,
			Title:          defaultTranslationTitle,
			TimeoutSeconds: defaultTranslationTimeout,
			RetryAttempts:  defaultTranslationRetries,
			TargetLanguage: defaultTargetLanguage,
			Tone:           defaultTone,
			Formality:      defaultFormality,
		},
		Reconcile: Reconcile{
			MinSpeedFactor:        defaultMinSpeedFactor,
			MaxSpeedFactor:        defaultMaxSpeedFactor,
			EpsilonMS:             defaultEpsilonMS,
			CommandTimeoutSeconds: defaultStretchTimeoutSeconds,
		},
		Stitch: Stitch{
			SampleRate:     defaultStitchSampleRate,
			FadeMS:         defaultFadeMS,
			GapToleranceMS: defaultGapToleranceMS,
		},
		Mux: Mux{
			FFmpegBinary:   "ffmpeg",
			FFprobeBinary:  "ffprobe",
			AudioCodec:     defaultMuxAudioCodec,
			AudioBitrate:   defaultMuxAudioBitrate,
			TimeoutSeconds: defaultMuxTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNotifyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
			MaxSizeMB:     defaultLogMaxSizeMB,
			MaxBackups:    defaultLogMaxBackups,
		},
	}
}
