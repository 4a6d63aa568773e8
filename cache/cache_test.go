package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemos-ai/sdk/notify"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()

	c := New(opts, nil, nil)
	t.Cleanup(c.Close)
	return c
}

func TestSetGet(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("greeting", "hello")

		got, ok := c.Get("greeting")
		require.True(t, ok)
		assert.Equal(t, "hello", got)
	})

	t.Run("missing key", func(t *testing.T) {
		c := newTestCache(t, Options{})

		_, ok := c.Get("absent")
		assert.False(t, ok)
	})

	t.Run("overwrite replaces value and size", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("k", "short")
		first := c.Stats().TotalMemory

		c.Set("k", "a considerably longer value than before")
		second := c.Stats().TotalMemory

		assert.Equal(t, 1, c.Stats().TotalItems)
		assert.Greater(t, second, first)
	})
}

func TestSizeBound(t *testing.T) {
	t.Run("item count never exceeds max size", func(t *testing.T) {
		c := newTestCache(t, Options{MaxSize: 5})

		for i := 0; i < 20; i++ {
			c.Set(fmt.Sprintf("key-%d", i), i)
			assert.LessOrEqual(t, c.Stats().TotalItems, 5)
		}
	})

	t.Run("lru evicts first inserted key", func(t *testing.T) {
		c := newTestCache(t, Options{MaxSize: 3})

		c.Set("a", 1)
		time.Sleep(2 * time.Millisecond)
		c.Set("b", 2)
		time.Sleep(2 * time.Millisecond)
		c.Set("c", 3)
		time.Sleep(2 * time.Millisecond)
		c.Set("d", 4)

		assert.False(t, c.Has("a"), "oldest key should be evicted")
		assert.True(t, c.Has("b"))
		assert.True(t, c.Has("c"))
		assert.True(t, c.Has("d"))
	})

	t.Run("recent access protects from lru eviction", func(t *testing.T) {
		c := newTestCache(t, Options{MaxSize: 3})

		c.Set("a", 1)
		time.Sleep(2 * time.Millisecond)
		c.Set("b", 2)
		time.Sleep(2 * time.Millisecond)
		c.Set("c", 3)
		time.Sleep(2 * time.Millisecond)

		_, ok := c.Get("a")
		require.True(t, ok)
		time.Sleep(2 * time.Millisecond)

		c.Set("d", 4)

		assert.True(t, c.Has("a"), "recently read key should survive")
		assert.False(t, c.Has("b"), "now-oldest key should be evicted")
	})
}

func TestMemoryBound(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 1000, MaxMemory: 2048})

	// Each value serializes to ~100 bytes, so ~200 bytes estimated.
	value := make([]int, 50)

	for i := 0; i < 50; i++ {
		c.Set(fmt.Sprintf("key-%d", i), value)
		assert.LessOrEqual(t, c.Stats().TotalMemory, int64(2048))
	}
}

func TestMemoryBoundEvictsByFrequency(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 1000, MaxMemory: 1200})

	// Three items of ~400 bytes each fit under the budget.
	value := make([]int, 99) // serializes to ~198 bytes, estimated ~400

	c.Set("cold", value)
	c.Set("warm", value)
	c.Set("hot", value)

	// Build up access counts so eviction order is deterministic.
	for i := 0; i < 5; i++ {
		c.Get("hot")
	}
	c.Get("warm")

	// The next write exceeds the budget and must drain to 80%, evicting
	// the least-frequently-used items first.
	c.Set("new", value)

	assert.False(t, c.Has("cold"))
	assert.True(t, c.Has("hot"))
}

func TestMemoryBoundLargeIncomingItem(t *testing.T) {
	c := newTestCache(t, Options{MaxSize: 1000, MaxMemory: 100})

	// A 14-byte string serializes to 16 quoted bytes, estimated at 32.
	c.Set("small", strings.Repeat("a", 14))
	require.Equal(t, int64(32), c.Stats().TotalMemory)

	// The incoming 80-byte item does not fit alongside the resident one,
	// so the resident item must be evicted even though current usage is
	// already below the drain target.
	c.Set("large", strings.Repeat("b", 38))

	assert.LessOrEqual(t, c.Stats().TotalMemory, int64(100))
	assert.False(t, c.Has("small"))
	assert.True(t, c.Has("large"))
}

func TestTTL(t *testing.T) {
	t.Run("expired item is a miss", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("k", "v", WithTTL(10*time.Millisecond))
		time.Sleep(20 * time.Millisecond)

		_, ok := c.Get("k")
		assert.False(t, ok)

		stats := c.Stats()
		assert.Equal(t, int64(0), stats.Hits)
		assert.Equal(t, int64(1), stats.Misses)
	})

	t.Run("default ttl applies when no explicit ttl", func(t *testing.T) {
		c := newTestCache(t, Options{DefaultTTL: 10 * time.Millisecond})

		c.Set("k", "v")
		time.Sleep(20 * time.Millisecond)

		assert.False(t, c.Has("k"))
	})

	t.Run("explicit ttl overrides default", func(t *testing.T) {
		c := newTestCache(t, Options{DefaultTTL: 10 * time.Millisecond})

		c.Set("k", "v", WithTTL(time.Hour))
		time.Sleep(20 * time.Millisecond)

		assert.True(t, c.Has("k"))
	})

	t.Run("no ttl means never expires", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("k", "v")
		time.Sleep(20 * time.Millisecond)

		assert.True(t, c.Has("k"))
	})
}

func TestTouch(t *testing.T) {
	t.Run("extends ttl", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("k", "v", WithTTL(15*time.Millisecond))
		require.True(t, c.Touch("k", time.Hour))
		time.Sleep(30 * time.Millisecond)

		assert.True(t, c.Has("k"))
	})

	t.Run("missing key", func(t *testing.T) {
		c := newTestCache(t, Options{})
		assert.False(t, c.Touch("absent"))
	})

	t.Run("zero ttl clears expiry", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("k", "v", WithTTL(15*time.Millisecond))
		require.True(t, c.Touch("k", 0))
		time.Sleep(30 * time.Millisecond)

		assert.True(t, c.Has("k"))
	})
}

func TestTags(t *testing.T) {
	t.Run("get by tag", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("a", 1, WithTags("red", "round"))
		c.Set("b", 2, WithTags("red"))
		c.Set("c", 3, WithTags("blue"))

		items := c.GetByTag("red")
		require.Len(t, items, 2)
	})

	t.Run("delete by tag removes all and only tagged items", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("a", 1, WithTags("t"))
		c.Set("b", 2, WithTags("t", "other"))
		c.Set("c", 3, WithTags("other"))
		c.Set("d", 4)

		removed := c.DeleteByTag("t")
		assert.Equal(t, 2, removed)
		assert.False(t, c.Has("a"))
		assert.False(t, c.Has("b"))
		assert.True(t, c.Has("c"))
		assert.True(t, c.Has("d"))
	})

	t.Run("delete by unknown tag", func(t *testing.T) {
		c := newTestCache(t, Options{})
		c.Set("a", 1)

		assert.Equal(t, 0, c.DeleteByTag("nothing"))
	})
}

func TestCleanup(t *testing.T) {
	t.Run("removes only expired items", func(t *testing.T) {
		c := newTestCache(t, Options{})

		c.Set("stale", 1, WithTTL(5*time.Millisecond))
		c.Set("fresh", 2, WithTTL(time.Hour))
		c.Set("forever", 3)
		time.Sleep(15 * time.Millisecond)

		removed := c.Cleanup()
		assert.Equal(t, 1, removed)
		assert.True(t, c.Has("fresh"))
		assert.True(t, c.Has("forever"))
	})

	t.Run("background sweep", func(t *testing.T) {
		c := newTestCache(t, Options{CleanupInterval: 10 * time.Millisecond})

		c.Set("stale", 1, WithTTL(5*time.Millisecond))

		assert.Eventually(t, func() bool {
			return c.Len() == 0
		}, time.Second, 5*time.Millisecond)
	})
}

func TestClear(t *testing.T) {
	c := newTestCache(t, Options{})

	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.TotalItems)
	assert.Equal(t, int64(0), stats.TotalMemory)
}

func TestStats(t *testing.T) {
	c := newTestCache(t, Options{})

	c.Set("a", 1)
	c.Set("b", 2)

	c.Get("a")
	c.Get("a")
	c.Get("absent")

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 2.0/3.0, stats.HitRate, 0.001)
	assert.InDelta(t, 1.0, stats.MeanAccessCount, 0.001)
	assert.False(t, stats.OldestCreatedAt.IsZero())
	assert.False(t, stats.NewestCreatedAt.Before(stats.OldestCreatedAt))
}

func TestMemoryAccounting(t *testing.T) {
	c := newTestCache(t, Options{})

	c.Set("a", "value-a")
	c.Set("b", "value-b")
	c.Delete("a")

	// Tracked total must equal the sum of live item sizes.
	var sum int64
	c.mu.Lock()
	for _, item := range c.items {
		sum += item.Size
	}
	c.mu.Unlock()

	assert.Equal(t, sum, c.Stats().TotalMemory)
}

func TestSizeEstimationFallback(t *testing.T) {
	c := newTestCache(t, Options{})

	// Channels cannot be JSON-serialized; the estimate falls back to
	// the fixed default instead of failing the write.
	c.Set("weird", make(chan int))

	assert.True(t, c.Has("weird"))
	assert.Equal(t, int64(fallbackItemSize), c.Stats().TotalMemory)
}

func TestNotifications(t *testing.T) {
	bus := notify.NewBus()

	var kinds []string
	bus.SubscribeAll(func(ev notify.Event) {
		kinds = append(kinds, ev.Kind)
	})

	c := New(Options{}, bus, nil)
	defer c.Close()

	c.Set("k", "v")
	c.Get("k")
	c.Get("absent")
	c.Delete("k")
	c.Clear()

	assert.Equal(t, []string{KindSet, KindHit, KindMiss, KindDelete, KindClear}, kinds)
}
