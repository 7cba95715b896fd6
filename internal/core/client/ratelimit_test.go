package client

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTimeline drives a limiter deterministically: time only advances when
// the limiter sleeps.
type fakeTimeline struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newTimeline() *fakeTimeline {
	return &fakeTimeline{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeTimeline) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTimeline) Sleep(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	f.sleeps = append(f.sleeps, d)
}

func newTestLimiter(maxRPS int, minDelay time.Duration, tl *fakeTimeline) *RateLimiter {
	r := NewRateLimiter(maxRPS, minDelay)
	r.clock = tl.Now
	r.sleep = tl.Sleep
	return r
}

func TestThrottleAllowsBurstUpToLimit(t *testing.T) {
	tl := newTimeline()
	r := newTestLimiter(3, 0, tl)
	for i := 0; i < 3; i++ {
		r.Throttle()
	}
	assert.Empty(t, tl.sleeps)
}

func TestThrottleBlocksAtCapacity(t *testing.T) {
	tl := newTimeline()
	r := newTestLimiter(3, 0, tl)
	for i := 0; i < 3; i++ {
		r.Throttle()
	}
	r.Throttle()
	require.Len(t, tl.sleeps, 1)
	assert.Equal(t, time.Second, tl.sleeps[0])
}

func TestThrottleMinDelay(t *testing.T) {
	tl := newTimeline()
	r := newTestLimiter(10, 200*time.Millisecond, tl)
	r.Throttle()
	r.Throttle()
	require.Len(t, tl.sleeps, 1)
	assert.Equal(t, 200*time.Millisecond, tl.sleeps[0])
}

func TestThrottleDisabled(t *testing.T) {
	tl := newTimeline()
	r := newTestLimiter(0, time.Second, tl)
	for i := 0; i < 100; i++ {
		r.Throttle()
	}
	assert.Empty(t, tl.sleeps)
}

// A window that fills up again after draining must force a wait every time,
// not just on the first saturation.
func TestThrottleRepeatedSaturation(t *testing.T) {
	tl := newTimeline()
	r := newTestLimiter(2, 0, tl)

	r.Throttle()
	r.Throttle()
	r.Throttle()
	require.Len(t, tl.sleeps, 1)

	r.Throttle()
	r.Throttle()
	require.Len(t, tl.sleeps, 2, "second saturated call must also wait")
	assert.Equal(t, time.Second, tl.sleeps[1])
}

// Sequential callers, limit of 5 per second: no one-second sliding window
// may contain more than 5 request starts.
func TestThrottleSlidingWindowBound(t *testing.T) {
	tl := newTimeline()
	r := newTestLimiter(5, 0, tl)

	stamps := make([]time.Time, 0, 17)
	for i := 0; i < 17; i++ {
		r.Throttle()
		stamps = append(stamps, tl.Now())
	}

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i := 0; i+5 < len(stamps); i++ {
		gap := stamps[i+5].Sub(stamps[i])
		assert.GreaterOrEqual(t, gap, time.Second,
			"6 request starts within one sliding second at index %d", i)
	}
}

// Ten concurrent callers make 50 requests at 5 rps: admitting all of them
// needs at least ten one-second windows, so the fake clock must advance by
// at least nine seconds.
func TestThrottleConcurrentPacing(t *testing.T) {
	tl := newTimeline()
	r := newTestLimiter(5, 0, tl)
	start := tl.Now()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				r.Throttle()
			}
		}()
	}
	wg.Wait()

	require.GreaterOrEqual(t, tl.Now().Sub(start), 9*time.Second)
}
