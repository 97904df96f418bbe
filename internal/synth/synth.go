package synth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"dubline/internal/audio"
	"dubline/internal/config"
	"dubline/internal/services"
)

// Request is one synthesis call.
type Request struct {
	Text         string
	Voice        string
	Model        string
	CredentialID string
	APIKey       string
}

// Audio is raw little-endian 16-bit PCM.
type Audio struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// Clip decodes the PCM into a mono clip.
func (a Audio) Clip() (audio.Clip, error) {
	return audio.FromPCM16LE(a.PCM, a.SampleRate, a.Channels)
}

// VoiceSynthesizer converts text to speech for one credential/model pair.
// Errors carry a services marker.
type VoiceSynthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (Audio, error)
}

// Options select and configure a provider.
type Options struct {
	Provider        string
	BaseURL         string
	PiperBinary     string
	PiperModelDir   string
	PiperSampleRate int
	HTTPClient      *http.Client
	Logger          *slog.Logger
}

// OptionsFromConfig derives provider options from the synthesis section.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{}
	}
	return Options{
		Provider:        cfg.Synthesis.Provider,
		BaseURL:         cfg.Synthesis.BaseURL,
		PiperBinary:     cfg.Synthesis.PiperBinary,
		PiperModelDir:   cfg.Synthesis.PiperModelDir,
		PiperSampleRate: cfg.Synthesis.PiperSampleRate,
	}
}

// New returns the synthesizer named by opts.Provider.
func New(opts Options) (VoiceSynthesizer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Provider)) {
	case config.ProviderOpenAI:
		return NewOpenAI(opts.BaseURL, opts.HTTPClient), nil
	case config.ProviderPiper:
		if strings.TrimSpace(opts.PiperModelDir) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "synth", "new", "piper model directory not set", nil)
		}
		return NewPiper(opts.PiperBinary, opts.PiperModelDir, opts.PiperSampleRate, opts.Logger), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "synth", "new",
			fmt.Sprintf("unsupported provider %q", opts.Provider), nil)
	}
}
