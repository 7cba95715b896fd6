// Package client implements the resilient HTTP layer shared by the AQS and
// Envista extractors: request pacing, a file-persisted circuit breaker, and
// a Retry-After-aware fetch loop with typed error classification.
package client

import (
	"sync"
	"time"
)

// RateLimiter paces outgoing requests with a one-second sliding window plus
// an optional minimum delay between successive requests. A single mutex
// covers the window so concurrent callers serialize through Throttle.
type RateLimiter struct {
	maxRPS   int
	minDelay time.Duration

	mu     sync.Mutex
	window []time.Time
	last   time.Time

	clock func() time.Time
	sleep func(time.Duration)
}

// NewRateLimiter returns a limiter allowing at most maxRPS request starts in
// any one-second window. maxRPS <= 0 disables pacing entirely.
func NewRateLimiter(maxRPS int, minDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRPS:   maxRPS,
		minDelay: minDelay,
		clock:    time.Now,
		sleep:    time.Sleep,
	}
}

// Throttle blocks until the caller may start a request, then records the
// request timestamp. Safe for concurrent use.
func (r *RateLimiter) Throttle() {
	if r.maxRPS <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock()

	if r.minDelay > 0 && !r.last.IsZero() {
		if elapsed := now.Sub(r.last); elapsed < r.minDelay {
			r.sleep(r.minDelay - elapsed)
			now = r.clock()
		}
	}

	r.trim(now)

	for len(r.window) >= r.maxRPS {
		earliest := r.window[0]
		if wait := time.Second - now.Sub(earliest); wait > 0 {
			r.sleep(wait)
			now = r.clock()
		}
		r.trim(now)
	}

	r.window = append(r.window, now)
	r.last = now
}

// trim drops timestamps at or before the start of the one-second window
// ending at now. A stamp exactly one second old no longer occupies the
// window, otherwise a saturated window would never drain. Callers hold r.mu.
func (r *RateLimiter) trim(now time.Time) {
	cutoff := now.Add(-time.Second)
	i := 0
	for i < len(r.window) && !r.window[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.window = append(r.window[:0], r.window[i:]...)
	}
}
