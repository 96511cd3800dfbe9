// internal/genai/ratelimit.go
package genai

import (
	"context"
	"sync"
	"time"
)

const acquireBuffer = 100 * time.Millisecond

// RateLimiter enforces a maximum number of outbound calls per rolling
// window. Safe for concurrent use; the wait happens outside the lock so a
// blocked caller never starves the others.
type RateLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	stamps []time.Time

	now func() time.Time
}

// NewRateLimiter creates a limiter allowing max calls per window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Acquire blocks until a slot is available in the trailing window, then
// records its own timestamp. Returns the context error if ctx is done while
// waiting. Re-evaluates after every wait because concurrently queued callers
// race for the freed slot.
func (r *RateLimiter) Acquire(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.now()
		cutoff := now.Add(-r.window)

		// Discard timestamps that fell out of the window.
		kept := r.stamps[:0]
		for _, ts := range r.stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		r.stamps = kept

		if len(r.stamps) < r.max {
			r.stamps = append(r.stamps, now)
			r.mu.Unlock()
			return nil
		}

		wait := r.window - now.Sub(r.stamps[0]) + acquireBuffer
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InFlight returns the number of acquisitions currently inside the window.
func (r *RateLimiter) InFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.window)
	n := 0
	for _, ts := range r.stamps {
		if ts.After(cutoff) {
			n++
		}
	}
	return n
}
