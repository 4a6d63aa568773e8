package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotVersion tags the snapshot wire format. Loaders reject snapshots
// with a different version rather than guessing at field layout.
const SnapshotVersion = "1"

// ErrSnapshotVersion is returned when a loaded snapshot carries an
// unknown format version.
var ErrSnapshotVersion = errors.New("cache: unsupported snapshot version")

// ErrNoSnapshot is returned by SnapshotStore.Load when no snapshot has
// been saved yet.
var ErrNoSnapshot = errors.New("cache: no snapshot found")

// Snapshot is a serialized copy of the cache's full item set.
type Snapshot struct {
	// Version identifies the snapshot format.
	Version string `json:"version"`

	// TakenAt is when the snapshot was produced.
	TakenAt time.Time `json:"taken_at"`

	// Items are the live items at snapshot time.
	Items []Item `json:"items"`
}

// SnapshotStore persists cache snapshots to an external store.
// Implementations are best-effort collaborators: the cache logs and
// ignores their failures rather than surfacing them as hard errors.
type SnapshotStore interface {
	// Save persists a snapshot, replacing any previous one.
	Save(ctx context.Context, snap Snapshot) error

	// Load returns the most recent snapshot, or ErrNoSnapshot when none
	// has been saved.
	Load(ctx context.Context) (*Snapshot, error)
}

// Snapshot produces a serialized copy of all live items.
func (c *Cache) Snapshot() Snapshot {
	now := time.Now()

	c.mu.Lock()
	items := make([]Item, 0, len(c.items))
	for _, item := range c.items {
		if item.IsExpired(now) {
			continue
		}
		items = append(items, *item)
	}
	c.mu.Unlock()

	return Snapshot{
		Version: SnapshotVersion,
		TakenAt: now,
		Items:   items,
	}
}

// SaveTo writes the current item set to the snapshot store. Failures are
// logged at warning level and swallowed; persistence is best-effort.
func (c *Cache) SaveTo(ctx context.Context, store SnapshotStore) {
	if store == nil {
		return
	}
	if err := store.Save(ctx, c.Snapshot()); err != nil {
		c.logger.Warn("cache snapshot save failed", "error", err)
	}
}

// LoadFrom replaces the cache contents with a previously saved snapshot.
// Load failures (including a missing snapshot) are logged and ignored,
// leaving the cache empty.
func (c *Cache) LoadFrom(ctx context.Context, store SnapshotStore) {
	if store == nil {
		return
	}

	snap, err := store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			c.logger.Warn("cache snapshot load failed", "error", err)
		}
		return
	}
	if snap.Version != SnapshotVersion {
		c.logger.Warn("cache snapshot load failed",
			"error", fmt.Errorf("%w: %q", ErrSnapshotVersion, snap.Version))
		return
	}

	now := time.Now()

	c.mu.Lock()
	c.items = make(map[string]*Item, len(snap.Items))
	c.totalMemory = 0
	for i := range snap.Items {
		item := snap.Items[i]
		if item.IsExpired(now) {
			continue
		}
		c.items[item.Key] = &item
		c.totalMemory += item.Size
	}
	c.mu.Unlock()
}

// RedisSnapshotStore persists snapshots as a single JSON value in Redis.
type RedisSnapshotStore struct {
	client *redis.Client
	key    string
}

// RedisSnapshotOptions configures the Redis connection for a snapshot store.
type RedisSnapshotOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string

	// Key is the Redis key the snapshot is stored under.
	// Default: "cache:snapshot".
	Key string

	// ConnectTimeout is the maximum time to wait for connection establishment.
	ConnectTimeout time.Duration
}

// NewRedisSnapshotStore connects to Redis and returns a snapshot store.
func NewRedisSnapshotStore(opts RedisSnapshotOptions) (*RedisSnapshotStore, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Key == "" {
		opts.Key = "cache:snapshot"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSnapshotStore{client: client, key: opts.Key}, nil
}

// Save persists the snapshot as JSON under the configured key.
func (s *RedisSnapshotStore) Save(ctx context.Context, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// Load reads and decodes the snapshot from the configured key.
func (s *RedisSnapshotStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Close closes the Redis connection.
func (s *RedisSnapshotStore) Close() error {
	return s.client.Close()
}
