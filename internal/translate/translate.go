package translate

import (
	"context"
	"strings"

	"dubline/internal/config"
)

// Turn is an already-translated chunk used as context.
type Turn struct {
	Source      string
	Translation string
}

// Request is one chunk to translate.
type Request struct {
	Index   int
	Text    string
	History []Turn
}

// Style steers the translation.
type Style struct {
	SourceLanguage string
	TargetLanguage string
	Tone           string
	Formality      string
	Glossary       map[string]string
}

// StyleFromConfig builds a Style from the translation section.
func StyleFromConfig(cfg *config.Config) Style {
	if cfg == nil {
		return Style{}
	}
	t := cfg.Translation
	return Style{
		SourceLanguage: t.SourceLanguage,
		TargetLanguage: t.TargetLanguage,
		Tone:           t.Tone,
		Formality:      t.Formality,
		Glossary:       t.Glossary,
	}
}

// Translator converts chunk text. Errors carry a services marker.
type Translator interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// Passthrough returns the source text unchanged.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, req Request) (string, error) {
	return strings.TrimSpace(req.Text), nil
}

// New returns the translator configured by cfg.
func New(cfg *config.Config, opts ...Option) (Translator, error) {
	if cfg == nil || !cfg.Translation.Enabled {
		return Passthrough{}, nil
	}
	return NewLLMClient(Config{
		APIKey:         cfg.Translation.APIKey,
		BaseURL:        cfg.Translation.BaseURL,
		Model:          cfg.Translation.Model,
		Referer:        cfg.Translation.Referer,
		Title:          cfg.Translation.Title,
		TimeoutSeconds: cfg.Translation.TimeoutSeconds,
		RetryAttempts:  cfg.Translation.RetryAttempts,
	}, StyleFromConfig(cfg), opts...)
}
