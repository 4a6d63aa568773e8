// Package cache provides a bounded, tag-aware key/value store with TTL,
// LRU and memory-budget eviction.
//
// Eviction runs in a fixed order whenever a write would violate a bound:
//
//  1. Size bound: while the item count is at MaxSize and the incoming key
//     is new, the least recently accessed item is evicted.
//  2. Memory bound: while the write would exceed MaxMemory, items are
//     evicted in ascending access-count order until usage falls to 80%
//     of the budget.
//  3. Expiry: a background sweep removes expired items periodically, and
//     Get/Has lazily evict an expired item on access. An expired access
//     counts as a miss.
//
// Item sizes are approximate: values are serialized to JSON and the byte
// count doubled, falling back to a fixed default when serialization fails.
//
// None of the cache operations return errors. Observable behavior is
// surfaced through set/hit/miss/delete/clear/cleanup notifications on an
// optional notify.Bus, and through Stats.
//
// The cache can optionally persist its full item set to an external
// SnapshotStore (a Redis-backed implementation is included) at startup
// and shutdown. Persistence is best-effort: failures are logged and the
// cache falls back to empty.
package cache
