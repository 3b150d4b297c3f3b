// Package cache provides the fingerprint-keyed response cache that avoids
// repeat paid calls for identical (document, prompt, model) tuples.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/smartdeal/dealextract/internal/domain"
)

// Entry is a cached extraction result.
type Entry struct {
	Deals      []domain.Deal
	Raw        string
	TokensUsed int
	StoredAt   time.Time
}

type item struct {
	entry      Entry
	expiration time.Time
}

// Cache is a thread-safe in-memory fingerprint cache with TTL support.
type Cache struct {
	mu   sync.RWMutex
	data map[string]item

	defaultTTL time.Duration
	done       chan struct{}
	closeOnce  sync.Once
}

// New creates a cache. A sweep goroutine removes expired entries at the
// given interval; interval <= 0 disables sweeping (entries still expire
// lazily on read).
func New(defaultTTL, sweepInterval time.Duration) *Cache {
	c := &Cache{
		data:       make(map[string]item),
		defaultTTL: defaultTTL,
		done:       make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweep(sweepInterval)
	}
	return c
}

// Fingerprint derives the cache key from the model, prompt and document.
func Fingerprint(modelID, prompt string, document []byte) string {
	doc := sha256.Sum256(document)

	h := sha256.New()
	h.Write([]byte(modelID))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	h.Write([]byte{0})
	h.Write(doc[:])
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Get retrieves a cached entry if present and not expired.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	it, ok := c.data[key]
	if !ok || time.Now().After(it.expiration) {
		return Entry{}, false
	}

	// Copy the deal slice so callers cannot mutate the cached value.
	out := it.entry
	out.Deals = append([]domain.Deal(nil), it.entry.Deals...)
	return out, true
}

// Set stores an entry under the key. ttl <= 0 uses the default TTL.
func (c *Cache) Set(key string, entry Entry, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	entry.StoredAt = time.Now()
	entry.Deals = append([]domain.Deal(nil), entry.Deals...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = item{entry: entry, expiration: time.Now().Add(ttl)}
}

// Delete removes a key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// Size returns the current number of entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]item)
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
		}
		c.mu.Lock()
		now := time.Now()
		for key, it := range c.data {
			if now.After(it.expiration) {
				delete(c.data, key)
			}
		}
		c.mu.Unlock()
	}
}
