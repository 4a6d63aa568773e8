package cache

import (
	"time"
)

// Notification kinds emitted by the cache on its notify.Bus.
const (
	// KindSet is emitted after a value is stored.
	KindSet = "set"

	// KindHit is emitted when Get finds a live item.
	KindHit = "hit"

	// KindMiss is emitted when Get finds no item, or only an expired one.
	KindMiss = "miss"

	// KindDelete is emitted after an item is removed explicitly or by eviction.
	KindDelete = "delete"

	// KindClear is emitted after all items are removed.
	KindClear = "clear"

	// KindCleanup is emitted after an expiry sweep that removed at least one item.
	KindCleanup = "cleanup"
)

// Item is a single cache entry with access bookkeeping.
// Items are owned exclusively by the Cache; callers receive copies.
type Item struct {
	// Key is the unique identifier for this entry.
	Key string `json:"key"`

	// Value is the stored data. Any JSON-serializable value is accepted.
	Value any `json:"value"`

	// CreatedAt is when the entry was first stored.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the entry stops being live. Nil means never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// AccessCount is the number of successful Get calls for this entry.
	AccessCount int64 `json:"access_count"`

	// LastAccessed is the time of the most recent store or successful Get.
	LastAccessed time.Time `json:"last_accessed"`

	// Size is the estimated in-memory footprint in bytes.
	// The estimate is derived from the JSON serialization of the value.
	Size int64 `json:"size"`

	// Tags are optional labels used for group lookup and invalidation.
	Tags []string `json:"tags,omitempty"`
}

// IsExpired reports whether the item's TTL has passed at the given time.
func (i *Item) IsExpired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// HasTag reports whether the item carries the given tag.
func (i *Item) HasTag(tag string) bool {
	for _, t := range i.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Options configures a Cache. Zero values select the documented defaults.
type Options struct {
	// MaxSize is the maximum number of items. When a new key would exceed
	// it, the least recently accessed item is evicted first.
	// Default: 1000.
	MaxSize int

	// MaxMemory is the memory budget in bytes across all items. When a
	// write would exceed it, items are evicted in ascending access-count
	// order until usage falls to 80% of the budget.
	// Default: 64 MiB.
	MaxMemory int64

	// DefaultTTL applies to items stored without an explicit TTL.
	// Zero means items never expire unless a per-call TTL is given.
	DefaultTTL time.Duration

	// CleanupInterval is the period of the background expiry sweep.
	// Zero disables the sweep; expired items are still evicted lazily
	// on access.
	CleanupInterval time.Duration
}

// Defaults applied when Options fields are zero.
const (
	DefaultMaxSize   = 1000
	DefaultMaxMemory = 64 << 20

	// fallbackItemSize is used when a value cannot be serialized for
	// size estimation.
	fallbackItemSize = 1024

	// memoryEvictionTarget is the fraction of MaxMemory that a
	// memory-pressure eviction pass drains usage down to.
	memoryEvictionTarget = 0.8
)

// Stats is a point-in-time summary of cache state, computed on demand.
type Stats struct {
	// TotalItems is the number of live items.
	TotalItems int `json:"total_items"`

	// TotalMemory is the tracked memory usage in bytes.
	TotalMemory int64 `json:"total_memory"`

	// Hits is the number of Get calls that found a live item.
	Hits int64 `json:"hits"`

	// Misses is the number of Get calls that found nothing, including
	// accesses to expired items.
	Misses int64 `json:"misses"`

	// HitRate is Hits / (Hits + Misses), or 0 when no lookups occurred.
	HitRate float64 `json:"hit_rate"`

	// OldestCreatedAt is the creation time of the oldest live item.
	OldestCreatedAt time.Time `json:"oldest_created_at"`

	// NewestCreatedAt is the creation time of the newest live item.
	NewestCreatedAt time.Time `json:"newest_created_at"`

	// MeanAccessCount is the average access count across live items.
	MeanAccessCount float64 `json:"mean_access_count"`
}
