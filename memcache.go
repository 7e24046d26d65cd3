package rocks

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

const maxMemcacheKey = 250

// Memcache is a Cache backed by one or more memcached servers.
type Memcache struct {
	client *memcache.Client
}

// NewMemcache creates a Memcache for the given servers. Hosts without a
// port use 11211.
func NewMemcache(hosts ...string) *Memcache {
	servers := make([]string, len(hosts))
	for i, h := range hosts {
		servers[i] = defaultPort(h, "11211")
	}
	return &Memcache{client: memcache.New(servers...)}
}

func (c *Memcache) Get(key string) ([]byte, bool, error) {
	item, err := c.client.Get(memcacheKey(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return item.Value, true, nil
}

func (c *Memcache) Set(key string, value []byte, ttl time.Duration) error {
	item := memcache.Item{Key: memcacheKey(key), Value: value}
	if ttl > 0 {
		secs := int32(ttl / time.Second)
		if secs == 0 {
			secs = 1
		}
		item.Expiration = secs
	}
	return c.client.Set(&item)
}

func (c *Memcache) Flush() error {
	return c.client.FlushAll()
}

// memcacheKey hashes keys memcached would reject: too long, or containing
// spaces or control characters.
func memcacheKey(key string) string {
	if len(key) <= maxMemcacheKey && legalMemcacheKey(key) {
		return key
	}
	sum := sha1.Sum([]byte(key))
	return "sha1:" + hex.EncodeToString(sum[:])
}

func legalMemcacheKey(key string) bool {
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

func defaultPort(host, port string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, port)
}
