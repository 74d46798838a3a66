// Package ratelimit provides the per-provider token-bucket limiting
// used by the Data Fetcher (spec §4.1). Adapted from the teacher's
// internal/net/ratelimit.Limiter, which keyed buckets per upstream
// host; here the bucket key is the provider ID since each provider
// adapter already pins a single upstream host.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a single provider's token bucket.
type Limiter struct {
	mu    sync.RWMutex
	limiter *rate.Limiter
	rps   float64
	burst int
}

// NewLimiter creates a token bucket refilling at rps with the given
// burst capacity.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		rps:     rps,
		burst:   burst,
	}
}

// Allow reports whether a request may proceed immediately, consuming
// a token if so.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait blocks until a token is available or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Reserve reserves a token and returns the reservation so the caller
// can inspect or cancel the resulting delay.
func (l *Limiter) Reserve() *rate.Reservation {
	return l.limiter.Reserve()
}

// SetRPS updates the refill rate.
func (l *Limiter) SetRPS(rps float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rps = rps
	l.limiter.SetLimit(rate.Limit(rps))
}

// Stats reports the limiter's current state without consuming a
// token.
func (l *Limiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	reservation := l.limiter.Reserve()
	delay := reservation.Delay()
	reservation.Cancel()

	return LimiterStats{
		RPS:             float64(l.limiter.Limit()),
		Burst:           l.limiter.Burst(),
		TokensAvailable: l.limiter.Tokens(),
		NextAllowedAt:   time.Now().Add(delay),
		Delay:           delay,
	}
}

// LimiterStats is a point-in-time snapshot of one limiter's state.
type LimiterStats struct {
	RPS             float64       `json:"rps"`
	Burst           int           `json:"burst"`
	TokensAvailable float64       `json:"tokens_available"`
	NextAllowedAt   time.Time     `json:"next_allowed_at"`
	Delay           time.Duration `json:"delay"`
}

// IsThrottled reports whether the next request would have to wait.
func (s LimiterStats) IsThrottled() bool { return s.Delay > 0 }

// Manager owns one Limiter per provider ID, registered with
// AddProvider; a provider ID that was never added is not throttled.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults map[string][2]float64 // providerID -> [rps, burst]
}

// NewManager creates an empty provider limiter registry.
func NewManager() *Manager {
	return &Manager{
		limiters: make(map[string]*Limiter),
		defaults: make(map[string][2]float64),
	}
}

// AddProvider registers (or replaces) the rate configuration for a
// provider ID.
func (m *Manager) AddProvider(id string, rps float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limiters[id] = NewLimiter(rps, burst)
}

// GetLimiter returns the limiter for a provider ID, if registered.
func (m *Manager) GetLimiter(id string) (*Limiter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.limiters[id]
	return l, ok
}

// Allow reports whether provider id may proceed immediately. An
// unregistered provider is never throttled.
func (m *Manager) Allow(id string) bool {
	l, ok := m.GetLimiter(id)
	if !ok {
		return true
	}
	return l.Allow()
}

// Wait blocks until provider id may proceed or ctx is cancelled.
func (m *Manager) Wait(ctx context.Context, id string) error {
	l, ok := m.GetLimiter(id)
	if !ok {
		return nil
	}
	return l.Wait(ctx)
}

// Stats returns a snapshot of every registered provider's limiter
// state.
func (m *Manager) Stats() map[string]LimiterStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]LimiterStats, len(m.limiters))
	for id, l := range m.limiters {
		out[id] = l.Stats()
	}
	return out
}
