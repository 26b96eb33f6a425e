package gpu

import (
	"sync"
	"time"

	"github.com/vremyavnikuda/sysinfo-utils/internal/logger"
)

// DefaultCacheTTL bounds snapshot staleness when no TTL is configured
const DefaultCacheTTL = 500 * time.Millisecond

// CacheConfig fixes the cache behavior for the lifetime of a Manager.
// MaxEntries of zero disables size bounding (TTL-only).
type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// DefaultCacheConfig returns the TTL-only default configuration
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: DefaultCacheTTL}
}

// CacheStats is a read-only aggregate computed on demand from the live
// entry set; it is not persisted separately.
type CacheStats struct {
	Entries        int
	TotalAccesses  uint64
	OldestEntryAge time.Duration
}

// cacheEntry pairs an immutable snapshot with its access bookkeeping.
// Entries are replaced wholesale on put, never mutated field by field, so
// a reader holds either the fully-old or fully-new snapshot.
type cacheEntry struct {
	snapshot     *DeviceRecord
	createdAt    time.Time
	lastAccessed time.Time
	accessCount  uint64
	seq          uint64
}

// resultCache maps device indexes to their last-known snapshot with TTL
// expiry and optional LRU size bounding. Expired entries are evicted
// lazily on access, not swept in the background.
type resultCache struct {
	mu      sync.Mutex
	entries map[int]*cacheEntry
	cfg     CacheConfig
	seq     uint64
	now     func() time.Time
}

func newResultCache(cfg CacheConfig) *resultCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultCacheTTL
	}
	return &resultCache{
		entries: make(map[int]*cacheEntry),
		cfg:     cfg,
		now:     time.Now,
	}
}

// get returns the cached snapshot for key if present and within TTL.
// A hit bumps lastAccessed and accessCount, an observable side effect
// even on a pure read.
func (c *resultCache) get(key int) *DeviceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}

	now := c.now()
	if now.Sub(entry.createdAt) >= c.cfg.TTL {
		delete(c.entries, key)
		logger.Debug().Int("key", key).Msg("Cached snapshot expired")
		return nil
	}

	entry.lastAccessed = now
	entry.accessCount++

	return entry.snapshot
}

// put inserts or replaces the entry for key, resetting its access
// statistics. When the configured bound would be exceeded, the
// least-recently-used entry is evicted first.
func (c *resultCache) put(key int, snapshot *DeviceRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.cfg.MaxEntries > 0 && len(c.entries) >= c.cfg.MaxEntries {
		c.evictLocked()
	}

	now := c.now()
	c.seq++
	c.entries[key] = &cacheEntry{
		snapshot:     snapshot,
		createdAt:    now,
		lastAccessed: now,
		seq:          c.seq,
	}
}

// evictLocked removes the entry with the oldest lastAccessed time.
// Ties fall to the lowest accessCount, then to insertion order, which
// keeps eviction deterministic under coarse clock resolution.
func (c *resultCache) evictLocked() {
	var victimKey int
	var victim *cacheEntry
	for key, entry := range c.entries {
		if victim == nil || olderEntry(entry, victim) {
			victimKey = key
			victim = entry
		}
	}
	if victim != nil {
		delete(c.entries, victimKey)
		logger.Debug().Int("key", victimKey).Msg("Evicted least recently used snapshot")
	}
}

func olderEntry(a, b *cacheEntry) bool {
	if !a.lastAccessed.Equal(b.lastAccessed) {
		return a.lastAccessed.Before(b.lastAccessed)
	}
	if a.accessCount != b.accessCount {
		return a.accessCount < b.accessCount
	}
	return a.seq < b.seq
}

// invalidate removes the entry for key if present
func (c *resultCache) invalidate(key int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// clear removes every entry
func (c *resultCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[int]*cacheEntry)
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// stats aggregates over the current entry set; O(entries)
func (c *resultCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{Entries: len(c.entries)}
	now := c.now()
	for _, entry := range c.entries {
		stats.TotalAccesses += entry.accessCount
		if age := now.Sub(entry.createdAt); age > stats.OldestEntryAge {
			stats.OldestEntryAge = age
		}
	}
	return stats
}
