// Package pacing decides when a platform action is allowed to happen.
package pacing

import (
	"math/rand"
	"sync"
	"time"

	"github.com/flavumhive/hivemind/internal/config"
)

// Limiter tracks per-action last-activity for one platform and gates
// eligibility against a jittered interval. Exceeding the limit is never an
// error, only a "not yet" answer.
type Limiter struct {
	platform    string
	minDelay    time.Duration
	minInterval time.Duration
	maxInterval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
	rng  *rand.Rand
}

// New creates a Limiter from the platform's configured rate limits.
func New(platform string, limits config.RateLimits) *Limiter {
	return &Limiter{
		platform:    platform,
		minDelay:    time.Duration(limits.MinDelayBetweenActions) * time.Second,
		minInterval: limits.MinInterval(),
		maxInterval: limits.MaxInterval(),
		last:        make(map[string]time.Time),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextDelay draws the delay until the next allowed action: uniform in
// [minInterval, maxInterval], perturbed by jitter uniform in ±minDelay/2,
// floored at minInterval. The draw is fresh on every call so repeated cycles
// never synchronize into bursts.
func (l *Limiter) NextDelay() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextDelayLocked()
}

func (l *Limiter) nextDelayLocked() time.Duration {
	span := l.maxInterval - l.minInterval
	base := l.minInterval
	if span > 0 {
		base += time.Duration(l.rng.Int63n(int64(span) + 1))
	}
	jitter := time.Duration(0)
	if l.minDelay > 0 {
		half := int64(l.minDelay / 2)
		jitter = time.Duration(l.rng.Int63n(2*half+1) - half)
	}
	d := base + jitter
	if d < l.minInterval {
		d = l.minInterval
	}
	return d
}

// Eligible reports whether an action of the given type may fire at now.
// True when no prior action of that type exists, or when the elapsed time
// has reached a freshly drawn NextDelay. The randomized threshold means
// "time until eligible" is deliberately non-deterministic.
func (l *Limiter) Eligible(action string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.last[action]
	if !ok || last.IsZero() {
		return true
	}
	return now.Sub(last) >= l.nextDelayLocked()
}

// Record marks an action of the given type as performed at now. Call only
// after the external action is confirmed successful, never speculatively.
func (l *Limiter) Record(action string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[action] = now
}

// Seed primes the last-action time from persisted state at startup, so a
// restart does not trigger an immediate burst. Only moves the mark forward.
func (l *Limiter) Seed(action string, t time.Time) {
	if t.IsZero() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.last[action]; !ok || t.After(cur) {
		l.last[action] = t
	}
}

// Last returns the recorded time for an action, if any.
func (l *Limiter) Last(action string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.last[action]
	return t, ok
}

// MinInterval returns the hard floor between same-type actions.
func (l *Limiter) MinInterval() time.Duration { return l.minInterval }

// MaxInterval returns the upper bound of the base interval draw.
func (l *Limiter) MaxInterval() time.Duration { return l.maxInterval }

// SetRandSource replaces the random source. Test hook.
func (l *Limiter) SetRandSource(src rand.Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rng = rand.New(src)
}
