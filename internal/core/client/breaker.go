package client

import (
	"sync"
	"time"

	"github.com/OR-Dept-Environmental-Quality/soar/internal/loaders"
	"github.com/OR-Dept-Environmental-Quality/soar/internal/metrics"
)

// healthState is the persisted breaker record. opened_at is null while the
// circuit is closed.
type healthState struct {
	ConsecutiveFailures int     `json:"consecutive_failures"`
	OpenedAt            *string `json:"opened_at"`
}

// Breaker is a file-persisted circuit breaker shared across process runs.
// Only server errors count toward opening it; a single success closes it.
// The state file lives in the control directory next to checkpoints so a
// crashed run leaves its health visible to the next one.
type Breaker struct {
	api       string
	path      string
	threshold int
	cooldown  time.Duration

	mu    sync.Mutex
	clock func() time.Time
}

// NewBreaker returns a breaker persisting to path. A missing or corrupt
// state file reads as closed with zero failures.
func NewBreaker(api, path string, threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		api:       api,
		path:      path,
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

func (b *Breaker) read() healthState {
	var state healthState
	if err := loaders.ReadJSON(b.path, &state); err != nil {
		return healthState{}
	}
	if state.ConsecutiveFailures < 0 {
		state.ConsecutiveFailures = 0
	}
	return state
}

// IsOpen reports whether the circuit is open: the failure threshold was
// reached and the cooldown window has not elapsed. Once the cooldown
// expires the circuit reads as closed so a probe request can go through.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, open := b.openState()
	b.gauge(open)
	return open
}

// OpenedAt returns the open timestamp when the circuit is currently open.
func (b *Breaker) OpenedAt() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openState()
}

// Cooldown returns the configured cooldown window.
func (b *Breaker) Cooldown() time.Duration { return b.cooldown }

// openState evaluates the persisted record. Callers hold b.mu.
func (b *Breaker) openState() (time.Time, bool) {
	state := b.read()
	if state.OpenedAt == nil || state.ConsecutiveFailures < b.threshold {
		return time.Time{}, false
	}
	opened, err := time.Parse(time.RFC3339, *state.OpenedAt)
	if err != nil {
		return time.Time{}, false
	}
	if b.clock().Before(opened.Add(b.cooldown)) {
		return opened, true
	}
	return time.Time{}, false
}

// RecordFailure increments the consecutive failure count and stamps
// opened_at the first time the threshold is reached. Call only for server
// errors; client errors and rate limiting must not trip the breaker.
func (b *Breaker) RecordFailure() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.read()
	state.ConsecutiveFailures++
	if state.ConsecutiveFailures >= b.threshold && state.OpenedAt == nil {
		ts := b.clock().UTC().Format(time.RFC3339)
		state.OpenedAt = &ts
		b.gauge(true)
	}
	return loaders.AtomicWriteJSON(b.path, state)
}

// RecordSuccess resets the breaker. An already-clean state is left alone so
// the hot path does not rewrite the file on every successful request.
func (b *Breaker) RecordSuccess() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := b.read()
	if state.ConsecutiveFailures == 0 && state.OpenedAt == nil {
		return nil
	}
	b.gauge(false)
	return loaders.AtomicWriteJSON(b.path, healthState{})
}

func (b *Breaker) gauge(open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	metrics.CircuitOpen.WithLabelValues(b.api).Set(v)
}
