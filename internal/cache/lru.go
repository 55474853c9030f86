package cache

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/objectfs/storenode/pkg/types"
)

// Config represents cache configuration
type Config struct {
	MaxEntries   int           `yaml:"max_entries"`
	TTL          time.Duration `yaml:"ttl"`
	MaxValueSize int64         `yaml:"max_value_size"`
}

// DefaultConfig returns the cache defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries:   65536,
		TTL:          5 * time.Minute,
		MaxValueSize: 1 << 20,
	}
}

// LRU is the read cache of one backend. Values are copied in and out.
type LRU struct {
	id       int
	lru      *expirable.LRU[string, []byte]
	maxValue int64
	capacity int
	onClose  func(id int, c *LRU)

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	closed    atomic.Bool
}

// NewLRU creates the cache of backend id.
func NewLRU(id int, cfg Config) *LRU {
	c := &LRU{id: id, maxValue: cfg.MaxValueSize, capacity: cfg.MaxEntries}
	c.lru = expirable.NewLRU[string, []byte](cfg.MaxEntries, func(string, []byte) {
		c.evictions.Add(1)
	}, cfg.TTL)
	return c
}

// Get returns a copy of the value cached under key.
func (c *LRU) Get(key string) ([]byte, bool) {
	if c.closed.Load() {
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return append([]byte(nil), v...), true
}

// Add caches a copy of value. Values above the size limit are not cached.
func (c *LRU) Add(key string, value []byte) {
	if c.closed.Load() {
		return
	}
	if c.maxValue > 0 && int64(len(value)) > c.maxValue {
		c.lru.Remove(key)
		return
	}
	c.lru.Add(key, append([]byte(nil), value...))
}

// Remove drops key.
func (c *LRU) Remove(key string) {
	c.lru.Remove(key)
}

// Len returns the number of cached entries.
func (c *LRU) Len() int {
	return c.lru.Len()
}

// Stats returns the cache statistics.
func (c *LRU) Stats() types.CacheStats {
	s := types.CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      int64(c.lru.Len()),
		Capacity:  int64(c.capacity),
	}
	s.Finalize()
	return s
}

// Close empties the cache. It is safe to call more than once.
func (c *LRU) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.lru.Purge()
	if c.onClose != nil {
		c.onClose(c.id, c)
	}
	return nil
}
