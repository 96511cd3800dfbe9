// internal/genai/retry.go
package genai

import (
	"context"
	"math/rand"
	"time"

	cperrors "carepath/internal/common/errors"
	"carepath/internal/common/logger"
	"carepath/internal/inference"
)

const (
	baseBackoff = 1000 * time.Millisecond
	maxBackoff  = 32000 * time.Millisecond
	jitterFrac  = 0.3
)

// Retrier wraps a caller with bounded retries. Only retryable failure
// kinds are retried; everything else propagates on the first attempt.
type Retrier struct {
	inner       inference.Caller
	maxAttempts int
	log         logger.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier wraps inner with up to maxAttempts attempts per Call.
func NewRetrier(inner inference.Caller, maxAttempts int, log logger.Logger) *Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Retrier{
		inner:       inner,
		maxAttempts: maxAttempts,
		log:         log,
		sleep:       sleepCtx,
	}
}

// Call attempts the wrapped caller, backing off exponentially with
// jitter between retryable failures.
func (r *Retrier) Call(ctx context.Context, req *inference.Request) (*inference.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		result, err := r.inner.Call(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !cperrors.IsRetryableErr(err) || attempt == r.maxAttempts {
			return nil, err
		}

		delay := Backoff(attempt)
		r.log.Warn("retrying inference call", map[string]interface{}{
			"caller":  req.CallerLabel,
			"attempt": attempt,
			"delayMs": delay.Milliseconds(),
			"error":   err.Error(),
		})
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// Backoff returns the delay after the given failed attempt:
// min(base*2^(attempt-1), max) plus jitter in [0, 30%) of the base delay.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseBackoff << (attempt - 1)
	if d > maxBackoff || d <= 0 {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Float64() * jitterFrac * float64(d))
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
