package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dubline/internal/rotator"
	"dubline/internal/textutil"
)

const namespace = "dubline"

// Metrics groups the collectors recorded during a run.
type Metrics struct {
	registry *prometheus.Registry

	// synthesisAttempts counts external synthesis calls.
	// Labels:
	//   - provider: synthesizer name (e.g. "openai", "piper")
	//   - outcome: success, transient, quota_exhausted, throttled, ...
	synthesisAttempts *prometheus.CounterVec

	// synthesisSeconds observes the latency of one synthesis call.
	// Buckets: 0.25s to 120s
	synthesisSeconds *prometheus.HistogramVec

	chunksSynthesized prometheus.Counter
	chunksDegraded    prometheus.Counter

	// pairTransitions counts rotator health changes.
	// Labels:
	//   - health: available, cooldown, disabled
	//   - reason: quota_exhausted, throttled, invalid_credential, cooldown_elapsed
	pairTransitions *prometheus.CounterVec

	translations *prometheus.CounterVec

	reconcileFactor  prometheus.Histogram
	reconcileActions *prometheus.CounterVec

	stageSeconds *prometheus.GaugeVec
}

// New creates and registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		synthesisAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_attempts_total",
			Help:      "Total number of external synthesis calls by outcome",
		}, []string{"provider", "outcome"}),
		synthesisSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_request_seconds",
			Help:      "Duration of external synthesis calls in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"provider"}),
		chunksSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_synthesized_total",
			Help:      "Chunks that produced verified speech",
		}),
		chunksDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_degraded_total",
			Help:      "Chunks replaced by a silence placeholder",
		}),
		pairTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pair_transitions_total",
			Help:      "Credential/model pair health transitions",
		}, []string{"health", "reason"}),
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_total",
			Help:      "Translated chunks by outcome",
		}, []string{"outcome"}),
		reconcileFactor: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_factor",
			Help:      "Required speed factor (generated / target duration)",
			Buckets:   []float64{0.5, 0.8, 0.9, 1, 1.1, 1.25, 1.5, 2, 3},
		}),
		reconcileActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_actions_total",
			Help:      "Duration reconciliation actions",
		}, []string{"action"}),
		stageSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage during the last run",
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.synthesisAttempts,
		m.synthesisSeconds,
		m.chunksSynthesized,
		m.chunksDegraded,
		m.pairTransitions,
		m.translations,
		m.reconcileFactor,
		m.reconcileActions,
		m.stageSeconds,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SynthesisAttempt records one external call.
func (m *Metrics) SynthesisAttempt(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	provider = textutil.SanitizeToken(provider)
	m.synthesisAttempts.WithLabelValues(provider, outcome).Inc()
	m.synthesisSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ChunkSynthesized records a chunk with verified speech.
func (m *Metrics) ChunkSynthesized() {
	if m == nil {
		return
	}
	m.chunksSynthesized.Inc()
}

// ChunkDegraded records a silence placeholder.
func (m *Metrics) ChunkDegraded() {
	if m == nil {
		return
	}
	m.chunksDegraded.Inc()
}

// PairTransition implements rotator.Observer.
func (m *Metrics) PairTransition(_ rotator.Pair, to rotator.Health, reason string) {
	if m == nil {
		return
	}
	m.pairTransitions.WithLabelValues(to.String(), textutil.SanitizeToken(reason)).Inc()
}

// Translation records a translated chunk outcome.
func (m *Metrics) Translation(outcome string) {
	if m == nil {
		return
	}
	m.translations.WithLabelValues(outcome).Inc()
}

// Reconciled records a reconciliation decision.
func (m *Metrics) Reconciled(action string, factor float64) {
	if m == nil {
		return
	}
	m.reconcileActions.WithLabelValues(action).Inc()
	if factor > 0 {
		m.reconcileFactor.Observe(factor)
	}
}

// StageDuration records the time spent in stage.
func (m *Metrics) StageDuration(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageSeconds.WithLabelValues(stage).Set(d.Seconds())
}

// WriteTextfile writes the registry in text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	return nil
}
