package rocks

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Cache is a string-keyed byte cache with per-item TTL. Implementations must
// be safe for concurrent use. A miss is reported as (nil, false, nil).
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte, ttl time.Duration) error
	Flush() error
}

// OpenCache returns the cache backend named by rawURL: "" or "memory" for an
// in-process cache, "memcache://host1:11211,host2" for memcached.
func OpenCache(rawURL string) (Cache, error) {
	if rawURL == "" || rawURL == "memory" {
		return NewMemoryCache(), nil
	}
	// Host lists are not valid URL authorities, so the scheme is split by hand.
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return nil, fmt.Errorf("cache url %q: missing scheme", rawURL)
	}
	switch scheme {
	case "memory":
		return NewMemoryCache(), nil
	case "memcache":
		hosts := ParseTags(strings.TrimSuffix(rest, "/"))
		if len(hosts) == 0 {
			return nil, fmt.Errorf("cache url %q: missing hosts", rawURL)
		}
		return NewMemcache(hosts...), nil
	}
	return nil, fmt.Errorf("cache url %q: unknown backend %q", rawURL, scheme)
}

type memoryItem struct {
	value   []byte
	expires time.Time // zero means no expiry
}

func (it memoryItem) valid(now time.Time) bool {
	return it.expires.IsZero() || now.Before(it.expires)
}

// MemoryCache is an in-memory Cache with lazy TTL expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: time.Now}
}

// Get returns a copy of the value stored under key if it has not expired.
// It tries a read lock first; only takes a write lock to drop an expired item.
func (c *MemoryCache) Get(key string) ([]byte, bool, error) {
	now := c.now()
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !it.valid(now) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && !cur.valid(now) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	out := make([]byte, len(it.value))
	copy(out, it.value)
	return out, true, nil
}

// Set stores value under key. A ttl <= 0 never expires.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	it := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = it
	c.mu.Unlock()
	return nil
}

// Flush drops every item.
func (c *MemoryCache) Flush() error {
	c.mu.Lock()
	c.items = make(map[string]memoryItem)
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored items, including expired ones not yet dropped.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func cacheKey(prefix, kind, key string) string {
	return prefix + "|" + kind + "|" + key
}

// getJSON decodes the value stored under key into v. Undecodable values are
// reported as misses so a format change never wedges a page.
func getJSON(c Cache, key string, v any) (bool, error) {
	b, ok, err := c.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, nil
	}
	return true, nil
}

func setJSON(c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache %s: encode: %w", key, err)
	}
	return c.Set(key, b, ttl)
}
