package rotator

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dubline/internal/logging"
	"dubline/internal/services"
)

const (
	defaultCooldown         = time.Minute
	defaultThrottleCooldown = 10 * time.Second
)

// Observer receives health transitions (metrics).
type Observer interface {
	PairTransition(pair Pair, to Health, reason string)
}

// PairStatus is a point-in-time view of one pair.
type PairStatus struct {
	Pair      Pair      `json:"pair"`
	Health    string    `json:"health"`
	Until     time.Time `json:"until,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
}

type pairState struct {
	pair      Pair
	health    Health
	until     time.Time
	reason    string
	successes int
	failures  int
}

// Rotator is safe for concurrent use.
type Rotator struct {
	mu    sync.Mutex
	pairs []*pairState
	index map[Pair]*pairState

	cooldown         time.Duration
	throttleCooldown time.Duration
	now              func() time.Time
	logger           *slog.Logger
	observer         Observer
}

// Option customizes a Rotator.
type Option func(*Rotator)

// WithCooldown sets the cooldown applied when no reset hint is reported.
func WithCooldown(d time.Duration) Option {
	return func(r *Rotator) {
		if d > 0 {
			r.cooldown = d
		}
	}
}

// WithThrottleCooldown sets the credential-wide cooldown applied on throttling.
func WithThrottleCooldown(d time.Duration) Option {
	return func(r *Rotator) {
		if d > 0 {
			r.throttleCooldown = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Rotator) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger used for health transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rotator) {
		r.logger = logger
	}
}

// WithObserver registers a transition observer.
func WithObserver(o Observer) Option {
	return func(r *Rotator) {
		r.observer = o
	}
}

// New builds the pool from models in priority order crossed with credentials.
func New(models, credentials []string, opts ...Option) (*Rotator, error) {
	models = dedupe(models)
	credentials = dedupe(credentials)
	if len(models) == 0 || len(credentials) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "rotator", "new",
			fmt.Sprintf("pool needs at least one model and one credential (models=%d credentials=%d)", len(models), len(credentials)), nil)
	}
	r := &Rotator{
		pairs:            make([]*pairState, 0, len(models)*len(credentials)),
		index:            make(map[Pair]*pairState, len(models)*len(credentials)),
		cooldown:         defaultCooldown,
		throttleCooldown: defaultThrottleCooldown,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.NewComponentLogger(r.logger, "rotator")
	for _, model := range models {
		for _, cred := range credentials {
			ps := &pairState{pair: Pair{CredentialID: cred, Model: model}}
			r.pairs = append(r.pairs, ps)
			r.index[ps.pair] = ps
		}
	}
	return r, nil
}

// Size returns the number of pairs in the pool.
func (r *Rotator) Size() int {
	return len(r.pairs)
}

// Pairs returns every pair in priority order.
func (r *Rotator) Pairs() []Pair {
	out := make([]Pair, len(r.pairs))
	for i, ps := range r.pairs {
		out[i] = ps.pair
	}
	return out
}

// Next returns the highest-priority available pair not in excluded. The
// boolean is false when the pool is exhausted for this caller.
func (r *Rotator) Next(excluded Exclusion) (Pair, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for _, ps := range r.pairs {
		r.refresh(ps, now)
		if ps.health != Available || excluded.Has(ps.pair) {
			continue
		}
		return ps.pair, true
	}
	return Pair{}, false
}

// NextAvailableAt reports the earliest cooldown expiry among pairs that are
// neither excluded nor disabled. False means no such pair will ever return.
func (r *Rotator) NextAvailableAt(excluded Exclusion) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var earliest time.Time
	found := false
	for _, ps := range r.pairs {
		r.refresh(ps, now)
		if excluded.Has(ps.pair) {
			continue
		}
		switch ps.health {
		case Available:
			return now, true
		case Cooldown:
			if !found || ps.until.Before(earliest) {
				earliest = ps.until
				found = true
			}
		}
	}
	return earliest, found
}

// Report applies an outcome to pair. Unknown pairs are ignored.
func (r *Rotator) Report(pair Pair, outcome Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.index[pair]
	if !ok {
		return
	}
	now := r.now()
	r.refresh(ps, now)

	if outcome.Kind == Success {
		ps.successes++
		return
	}
	ps.failures++

	switch outcome.Kind {
	case QuotaExhausted:
		d := outcome.ResetAfter
		if d <= 0 {
			d = r.cooldown
		}
		r.coolDown(ps, now.Add(d), outcome.Kind.String())
	case Throttled:
		d := outcome.ResetAfter
		if d <= 0 {
			d = r.throttleCooldown
		}
		until := now.Add(d)
		for _, other := range r.pairs {
			if other.pair.CredentialID == pair.CredentialID {
				r.refresh(other, now)
				r.coolDown(other, until, outcome.Kind.String())
			}
		}
	case InvalidCredential:
		if ps.health == Disabled {
			return
		}
		ps.health = Disabled
		ps.until = time.Time{}
		ps.reason = outcome.Kind.String()
		logging.WarnWithContext(r.logger, "pair disabled for session", "pair_disabled",
			logging.String(logging.FieldPair, pair.String()),
			logging.String(logging.FieldErrorHint, "check the credential and its model access"),
			logging.String(logging.FieldImpact, "pair will not be used again this run"),
		)
		r.notify(ps.pair, Disabled, ps.reason)
	}
}

// coolDown extends a pair's cooldown; it never shortens one or revives a
// disabled pair.
func (r *Rotator) coolDown(ps *pairState, until time.Time, reason string) {
	if ps.health == Disabled {
		return
	}
	if ps.health == Cooldown && !until.After(ps.until) {
		return
	}
	ps.health = Cooldown
	ps.until = until
	ps.reason = reason
	logging.WarnWithContext(r.logger, "pair cooling down", "pair_cooldown",
		logging.String(logging.FieldPair, ps.pair.String()),
		logging.String("reason", reason),
		logging.Duration("cooldown", until.Sub(r.now())),
		logging.String(logging.FieldErrorHint, "provider quota or rate limit reached"),
		logging.String(logging.FieldImpact, "requests rotate to other pairs until cooldown ends"),
	)
	r.notify(ps.pair, Cooldown, reason)
}

func (r *Rotator) refresh(ps *pairState, now time.Time) {
	if ps.health != Cooldown || now.Before(ps.until) {
		return
	}
	ps.health = Available
	ps.until = time.Time{}
	ps.reason = ""
	r.logger.Debug("pair available again", logging.String(logging.FieldPair, ps.pair.String()))
	r.notify(ps.pair, Available, "cooldown_elapsed")
}

func (r *Rotator) notify(pair Pair, to Health, reason string) {
	if r.observer != nil {
		r.observer.PairTransition(pair, to, reason)
	}
}

// Snapshot returns the status of every pair in priority order.
func (r *Rotator) Snapshot() []PairStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	out := make([]PairStatus, 0, len(r.pairs))
	for _, ps := range r.pairs {
		r.refresh(ps, now)
		out = append(out, PairStatus{
			Pair:      ps.pair,
			Health:    ps.health.String(),
			Until:     ps.until,
			Reason:    ps.reason,
			Successes: ps.successes,
			Failures:  ps.failures,
		})
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
