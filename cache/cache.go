package cache

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/mnemos-ai/sdk/notify"
)

// source identifies this component in emitted notifications.
const source = "cache"

// Cache is a bounded, tag-aware key/value store with TTL, LRU and
// memory-budget eviction.
//
// All methods are safe for concurrent use, though the engine as a whole
// assumes one logical caller per instance. None of the operations return
// errors: malformed values fall back to a default size estimate, and
// lookups simply report absence.
type Cache struct {
	mu          sync.Mutex
	opts        Options
	items       map[string]*Item
	totalMemory int64
	hits        int64
	misses      int64

	bus    *notify.Bus
	logger *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// SetOption configures a single Set call.
type SetOption func(*setConfig)

type setConfig struct {
	ttl    time.Duration
	hasTTL bool
	tags   []string
}

// WithTTL sets an explicit time-to-live for the stored item, overriding
// the cache's DefaultTTL. A zero duration means the item never expires.
func WithTTL(ttl time.Duration) SetOption {
	return func(c *setConfig) {
		c.ttl = ttl
		c.hasTTL = true
	}
}

// WithTags attaches tags to the stored item for group lookup and
// invalidation via GetByTag and DeleteByTag.
func WithTags(tags ...string) SetOption {
	return func(c *setConfig) {
		c.tags = tags
	}
}

// New creates a Cache with the given options. The bus and logger are
// optional collaborators; pass nil to disable notifications or logging.
//
// When CleanupInterval is positive, a background sweep removes expired
// items on that period until Close is called.
func New(opts Options, bus *notify.Bus, logger *slog.Logger) *Cache {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultMaxSize
	}
	if opts.MaxMemory <= 0 {
		opts.MaxMemory = DefaultMaxMemory
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cache{
		opts:   opts,
		items:  make(map[string]*Item),
		bus:    bus,
		logger: logger,
		stop:   make(chan struct{}),
	}

	if opts.CleanupInterval > 0 {
		go c.sweepLoop(opts.CleanupInterval)
	}

	return c
}

// Close stops the background expiry sweep. The cache remains usable.
func (c *Cache) Close() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Cleanup()
		}
	}
}

// Set stores a value under key, applying eviction as needed to keep the
// cache within its size and memory bounds.
//
// TTL resolution order: explicit WithTTL > configured DefaultTTL > never
// expires.
func (c *Cache) Set(key string, value any, opts ...SetOption) {
	var cfg setConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ttl := c.opts.DefaultTTL
	if cfg.hasTTL {
		ttl = cfg.ttl
	}

	now := time.Now()
	item := &Item{
		Key:          key,
		Value:        value,
		CreatedAt:    now,
		LastAccessed: now,
		Size:         c.estimateSize(value),
		Tags:         cfg.tags,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		item.ExpiresAt = &exp
	}

	c.mu.Lock()
	if old, ok := c.items[key]; ok {
		c.totalMemory -= old.Size
		delete(c.items, key)
	} else {
		c.evictForSizeLocked()
	}
	c.evictForMemoryLocked(item.Size)
	c.items[key] = item
	c.totalMemory += item.Size
	c.mu.Unlock()

	c.bus.Emit(KindSet, source, map[string]any{"key": key, "size": item.Size})
}

// evictForSizeLocked removes least-recently-accessed items until a new key
// can be inserted without exceeding MaxSize.
func (c *Cache) evictForSizeLocked() {
	for len(c.items) >= c.opts.MaxSize {
		var victim *Item
		for _, item := range c.items {
			if victim == nil || item.LastAccessed.Before(victim.LastAccessed) {
				victim = item
			}
		}
		if victim == nil {
			return
		}
		c.removeLocked(victim.Key)
	}
}

// evictForMemoryLocked removes least-frequently-accessed items until the
// incoming size fits within MaxMemory, draining usage to 80% of the
// budget. An incoming item larger than the whole budget empties the
// cache and is stored anyway.
func (c *Cache) evictForMemoryLocked(incoming int64) {
	if c.totalMemory+incoming <= c.opts.MaxMemory {
		return
	}

	target := int64(float64(c.opts.MaxMemory) * memoryEvictionTarget)
	for (c.totalMemory+incoming > c.opts.MaxMemory || c.totalMemory > target) && len(c.items) > 0 {
		var victim *Item
		for _, item := range c.items {
			if victim == nil || item.AccessCount < victim.AccessCount {
				victim = item
			}
		}
		c.removeLocked(victim.Key)
	}
}

// removeLocked deletes an item and emits a delete notification.
// Callers must hold c.mu.
func (c *Cache) removeLocked(key string) {
	item, ok := c.items[key]
	if !ok {
		return
	}
	c.totalMemory -= item.Size
	delete(c.items, key)
	c.bus.Emit(KindDelete, source, map[string]any{"key": key})
}

// Get retrieves a live value by key. Accessing an expired item evicts it
// and counts as a miss.
func (c *Cache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.Lock()
	item, ok := c.items[key]
	if ok && item.IsExpired(now) {
		c.removeLocked(key)
		ok = false
	}
	if !ok {
		c.misses++
		c.mu.Unlock()
		c.bus.Emit(KindMiss, source, map[string]any{"key": key})
		return nil, false
	}
	item.AccessCount++
	item.LastAccessed = now
	value := item.Value
	c.hits++
	c.mu.Unlock()

	c.bus.Emit(KindHit, source, map[string]any{"key": key})
	return value, true
}

// Has reports whether a live item exists for key without counting a hit
// or bumping access bookkeeping. An expired item is lazily evicted.
func (c *Cache) Has(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if ok && item.IsExpired(now) {
		c.removeLocked(key)
		return false
	}
	return ok
}

// Delete removes an item by key, reporting whether it existed.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	_, ok := c.items[key]
	if ok {
		c.removeLocked(key)
	}
	c.mu.Unlock()
	return ok
}

// Clear removes all items.
func (c *Cache) Clear() {
	c.mu.Lock()
	n := len(c.items)
	c.items = make(map[string]*Item)
	c.totalMemory = 0
	c.mu.Unlock()

	c.bus.Emit(KindClear, source, map[string]any{"removed": n})
}

// GetByTag returns copies of all live items carrying the given tag.
// This scans every item and is O(n); acceptable because the item count
// is bounded by MaxSize.
func (c *Cache) GetByTag(tag string) []Item {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Item
	for _, item := range c.items {
		if item.IsExpired(now) {
			continue
		}
		if item.HasTag(tag) {
			out = append(out, *item)
		}
	}
	return out
}

// DeleteByTag removes all items carrying the given tag and returns the
// number removed.
func (c *Cache) DeleteByTag(tag string) int {
	c.mu.Lock()
	var keys []string
	for key, item := range c.items {
		if item.HasTag(tag) {
			keys = append(keys, key)
		}
	}
	for _, key := range keys {
		c.removeLocked(key)
	}
	c.mu.Unlock()
	return len(keys)
}

// Touch refreshes an item's last-access time and optionally replaces its
// TTL. It reports whether a live item existed.
func (c *Cache) Touch(key string, ttl ...time.Duration) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok || item.IsExpired(now) {
		return false
	}
	item.LastAccessed = now
	if len(ttl) > 0 {
		if ttl[0] > 0 {
			exp := now.Add(ttl[0])
			item.ExpiresAt = &exp
		} else {
			item.ExpiresAt = nil
		}
	}
	return true
}

// Cleanup removes all expired items and returns the number removed.
// This is the same pass the background sweep runs.
func (c *Cache) Cleanup() int {
	now := time.Now()

	c.mu.Lock()
	var expired []string
	for key, item := range c.items {
		if item.IsExpired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		item := c.items[key]
		c.totalMemory -= item.Size
		delete(c.items, key)
	}
	c.mu.Unlock()

	if len(expired) > 0 {
		c.bus.Emit(KindCleanup, source, map[string]any{"removed": len(expired)})
	}
	return len(expired)
}

// Stats computes a point-in-time summary of cache state.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := Stats{
		TotalItems:  len(c.items),
		TotalMemory: c.totalMemory,
		Hits:        c.hits,
		Misses:      c.misses,
	}

	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}

	var accessSum int64
	for _, item := range c.items {
		if stats.OldestCreatedAt.IsZero() || item.CreatedAt.Before(stats.OldestCreatedAt) {
			stats.OldestCreatedAt = item.CreatedAt
		}
		if item.CreatedAt.After(stats.NewestCreatedAt) {
			stats.NewestCreatedAt = item.CreatedAt
		}
		accessSum += item.AccessCount
	}
	if len(c.items) > 0 {
		stats.MeanAccessCount = float64(accessSum) / float64(len(c.items))
	}

	return stats
}

// Len returns the current number of items, including not-yet-swept
// expired entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// estimateSize approximates a value's in-memory footprint by serializing
// it to JSON and doubling the byte count. Values that cannot be
// serialized fall back to a fixed default.
func (c *Cache) estimateSize(value any) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Debug("size estimation fallback",
			"error", err)
		return fallbackItemSize
	}
	return int64(len(data)) * 2
}
