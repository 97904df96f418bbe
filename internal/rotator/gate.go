package rotator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Gate caps concurrent requests per credential and spaces request starts on
// one credential by at least a minimum interval.
type Gate struct {
	mu       sync.Mutex
	limit    int64
	interval time.Duration
	entries  map[string]*gateEntry
}

type gateEntry struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewGate returns a gate allowing perCredential concurrent requests per
// credential (minimum 1) with at least interval between request starts.
func NewGate(perCredential int, interval time.Duration) *Gate {
	if perCredential <= 0 {
		perCredential = 1
	}
	return &Gate{
		limit:    int64(perCredential),
		interval: interval,
		entries:  make(map[string]*gateEntry),
	}
}

func (g *Gate) entry(credentialID string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[credentialID]
	if !ok {
		e = &gateEntry{sem: semaphore.NewWeighted(g.limit)}
		if g.interval > 0 {
			e.limiter = rate.NewLimiter(rate.Every(g.interval), 1)
		}
		g.entries[credentialID] = e
	}
	return e
}

// Acquire blocks until the credential has a free slot and its request spacing
// allows a new call. The returned release must be called exactly once.
func (g *Gate) Acquire(ctx context.Context, credentialID string) (func(), error) {
	e := g.entry(credentialID)
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			e.sem.Release(1)
			return nil, err
		}
	}
	var once sync.Once
	return func() { once.Do(func() { e.sem.Release(1) }) }, nil
}
