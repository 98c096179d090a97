package translate

import (
	"context"
	"sync"

	"NewsBoard/internal/ports"
)

// Cache memoizes successful translations of next, keyed by language and text.
// Failures are not cached so a later attempt can succeed.
type Cache struct {
	next     ports.Translator
	language string

	mu      sync.RWMutex
	entries map[string]string
}

var _ ports.Translator = (*Cache)(nil)

// NewCache wraps next.
func NewCache(next ports.Translator, language string) *Cache {
	return &Cache{next: next, language: language, entries: map[string]string{}}
}

// Translate returns the cached translation or asks next.
func (c *Cache) Translate(ctx context.Context, text string) (string, error) {
	key := c.language + "\x00" + text

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	translated, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[key] = translated
	c.mu.Unlock()
	return translated, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
