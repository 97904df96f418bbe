package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"dubline/internal/config"
	"dubline/internal/ledger"
	"dubline/internal/logging"
	"dubline/internal/media/ffmpeg"
	"dubline/internal/media/ffprobe"
	"dubline/internal/metrics"
	"dubline/internal/notifications"
	"dubline/internal/reconcile"
	"dubline/internal/services"
	"dubline/internal/synth"
	"dubline/internal/translate"
)

// Muxer replaces a video's audio track.
type Muxer interface {
	Mux(ctx context.Context, req ffmpeg.MuxRequest) (ffmpeg.MuxResult, error)
}

// Dependencies are the external collaborators an Engine drives.
type Dependencies struct {
	Synthesizer synth.VoiceSynthesizer
	Translator  translate.Translator
	Stretcher   reconcile.Stretcher
	// Muxer may be nil when no run supplies a video.
	Muxer Muxer
	// Ledger, Metrics and Notifier are optional.
	Ledger   *ledger.Store
	Metrics  *metrics.Metrics
	Notifier notifications.Service
	Logger   *slog.Logger
	// Now and Sleep are overridable for tests.
	Now   func() time.Time
	Sleep func(context.Context, time.Duration) error
}

// Engine runs dubbing pipelines for one configuration. Each Run builds a fresh
// rotation pool, so credential health never leaks between runs.
type Engine struct {
	cfg    *config.Config
	deps   Dependencies
	logger *slog.Logger
	closer func() error
}

// New validates deps and returns an engine.
func New(cfg *config.Config, deps Dependencies) (*Engine, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "config is required", nil)
	}
	if deps.Synthesizer == nil || deps.Translator == nil || deps.Stretcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new",
			"synthesizer, translator and stretcher are required", nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		logger: logging.NewComponentLogger(deps.Logger, "pipeline"),
	}, nil
}

// NewFromConfig wires the production collaborators named by cfg.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "config is required", nil)
	}
	synthOpts := synth.OptionsFromConfig(cfg)
	synthOpts.Logger = logger
	synthesizer, err := synth.New(synthOpts)
	if err != nil {
		return nil, err
	}
	translator, err := translate.New(cfg, translate.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	muxer := ffmpeg.NewMuxer(ffmpeg.MuxOptions{
		Binary:       cfg.FFmpegBinary(),
		AudioCodec:   cfg.Mux.AudioCodec,
		AudioBitrate: cfg.Mux.AudioBitrate,
		Timeout:      cfg.Mux.Timeout(),
	}, ffprobe.New(cfg.FFprobeBinary()), logger)

	var store *ledger.Store
	if cfg.Paths.LedgerPath != "" {
		store, err = ledger.Open(cfg.Paths.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
	}
	engine, err := New(cfg, Dependencies{
		Synthesizer: synthesizer,
		Translator:  translator,
		Stretcher:   ffmpeg.NewStretcher(cfg.FFmpegBinary(), cfg.Reconcile.CommandTimeout(), logger),
		Muxer:       muxer,
		Ledger:      store,
		Notifier:    notifications.NewService(cfg),
		Logger:      logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	engine.closer = store.Close
	return engine, nil
}

// Metrics exposes the engine's registry wrapper.
func (e *Engine) Metrics() *metrics.Metrics { return e.deps.Metrics }

// Close releases the ledger when the engine opened it.
func (e *Engine) Close() error {
	if e == nil || e.closer == nil {
		return nil
	}
	return e.closer()
}

// dubLanguage is the language spoken on the dubbed track.
func (e *Engine) dubLanguage() string {
	if e.cfg.Translation.Enabled {
		return e.cfg.Translation.TargetLanguage
	}
	return e.cfg.Translation.SourceLanguage
}

func (e *Engine) workDir() string { return e.cfg.Paths.WorkDir }

func (e *Engine) artifactDir() string { return filepath.Join(e.workDir(), "artifacts") }

func (e *Engine) fittedDir() string { return filepath.Join(e.workDir(), "fitted") }

func (e *Engine) trackPath() string { return filepath.Join(e.workDir(), "track.wav") }
