package share

import (
	"sync"
	"time"
)

// previewEntry is one cached preview with its expiry.
type previewEntry struct {
	data      *PreviewData
	expiresAt time.Time
}

func (e *previewEntry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// PreviewCache is an in-memory TTL cache for rendered share previews, keyed
// by share token. Entries are bounded by count; when full, the entries
// closest to expiry are evicted first.
type PreviewCache struct {
	items      map[string]*previewEntry
	mutex      sync.RWMutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewPreviewCache creates a preview cache holding at most maxEntries items
// for ttl each.
func NewPreviewCache(ttl time.Duration, maxEntries int) *PreviewCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &PreviewCache{
		items:      make(map[string]*previewEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves a cached preview by token.
func (c *PreviewCache) Get(token string) (*PreviewData, bool) {
	c.mutex.RLock()
	entry, ok := c.items[token]
	c.mutex.RUnlock()
	if !ok {
		return nil, false
	}

	if entry.expired(c.now()) {
		c.Delete(token)
		return nil, false
	}
	return entry.data, true
}

// Set stores a preview under the token.
func (c *PreviewCache) Set(token string, data *PreviewData) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if _, ok := c.items[token]; !ok && len(c.items) >= c.maxEntries {
		c.evictLocked()
	}

	c.items[token] = &previewEntry{
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Delete removes a token's cached preview.
func (c *PreviewCache) Delete(token string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	delete(c.items, token)
}

// Clear removes all cached previews.
func (c *PreviewCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.items = make(map[string]*previewEntry)
}

// Len reports the number of cached previews, expired ones included.
func (c *PreviewCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.items)
}

// evictLocked frees at least one slot. Expired entries go first; if none are
// expired, the entry closest to expiry is dropped. Callers hold the lock.
func (c *PreviewCache) evictLocked() {
	now := c.now()
	removed := false
	for token, entry := range c.items {
		if entry.expired(now) {
			delete(c.items, token)
			removed = true
		}
	}
	if removed {
		return
	}

	var oldestToken string
	var oldestExpiry time.Time
	for token, entry := range c.items {
		if oldestToken == "" || entry.expiresAt.Before(oldestExpiry) {
			oldestToken = token
			oldestExpiry = entry.expiresAt
		}
	}
	if oldestToken != "" {
		delete(c.items, oldestToken)
	}
}
