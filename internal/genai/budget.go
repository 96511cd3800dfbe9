// internal/genai/budget.go
package genai

import (
	"sync"
	"time"

	"carepath/internal/common/logger"
)

// EstimateTokens approximates the token count of text as ceil(len/4). The
// budget contract is defined in these units; swapping in a real tokenizer
// would silently change every configured limit.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// TokenBudget enforces a maximum estimated token volume per rolling window.
// The window resets lazily on the next touch after it elapses, not on a
// background timer. Safe for concurrent use.
type TokenBudget struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	used      int
	lastReset time.Time
	warned    bool

	log logger.Logger
	now func() time.Time
}

// NewTokenBudget creates a budget of max estimated tokens per window.
func NewTokenBudget(max int, window time.Duration, log logger.Logger) *TokenBudget {
	return &TokenBudget{
		max:       max,
		window:    window,
		lastReset: time.Now(),
		log:       log,
		now:       time.Now,
	}
}

// CanAfford reports whether an estimated spend fits the remaining budget.
func (b *TokenBudget) CanAfford(estimatedTokens int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeReset()
	return b.used+estimatedTokens < b.max
}

// Record adds the estimated cost of a prompt/response pair to the running
// counter and warns once per window when usage crosses 80% of budget.
func (b *TokenBudget) Record(prompt, response string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeReset()
	b.used += EstimateTokens(prompt) + EstimateTokens(response)

	if !b.warned && float64(b.used) > float64(b.max)*0.8 {
		b.warned = true
		b.log.Warn("token budget nearing limit", map[string]interface{}{
			"used":    b.used,
			"max":     b.max,
			"percent": float64(b.used) / float64(b.max) * 100,
		})
	}
}

// Used returns the tokens counted against the current window.
func (b *TokenBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.maybeReset()
	return b.used
}

// maybeReset zeroes the counter when the window has elapsed. Caller holds
// the lock.
func (b *TokenBudget) maybeReset() {
	if b.now().Sub(b.lastReset) > b.window {
		b.used = 0
		b.lastReset = b.now()
		b.warned = false
	}
}
