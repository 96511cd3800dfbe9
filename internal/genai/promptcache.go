// internal/genai/promptcache.go
package genai

import (
	"fmt"
	"sync"
	"time"
)

type promptEntry struct {
	name   string
	prompt string
	expiry time.Time
}

// PromptCache tracks reusable system-prompt handles per caller label. A hit
// returns the handle so the call can skip resending the system prompt; a
// miss (or expiry) stores a fresh handle but reports it as not yet reusable,
// so the first call after a miss still sends the full prompt.
type PromptCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]promptEntry

	now func() time.Time
}

func NewPromptCache(ttl time.Duration) *PromptCache {
	return &PromptCache{
		ttl:     ttl,
		entries: make(map[string]promptEntry),
		now:     time.Now,
	}
}

// Handle resolves the cached handle for label. The second return is false
// when this call must send the full prompt.
func (c *PromptCache) Handle(label, systemPrompt string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if entry, ok := c.entries[label]; ok && now.Before(entry.expiry) && entry.prompt == systemPrompt {
		return entry.name, true
	}

	c.entries[label] = promptEntry{
		name:   fmt.Sprintf("cached_%s_%d", label, now.UnixMilli()),
		prompt: systemPrompt,
		expiry: now.Add(c.ttl),
	}
	return "", false
}

// Clear drops all cached handles.
func (c *PromptCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]promptEntry)
}
