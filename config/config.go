// Package config provides loading and parsing of engine.yaml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents an engine.yaml configuration file.
type Config struct {
	Cache       *CacheConfig       `yaml:"cache,omitempty"`
	Rules       *RulesConfig       `yaml:"rules,omitempty"`
	Retrieval   *RetrievalConfig   `yaml:"retrieval,omitempty"`
	Enhancement *EnhancementConfig `yaml:"enhancement,omitempty"`
}

// CacheConfig configures the bounded result cache.
type CacheConfig struct {
	// MaxSize is the maximum number of cached items.
	MaxSize int `yaml:"max_size,omitempty"`

	// MaxMemory is the cache memory budget in bytes.
	MaxMemory int64 `yaml:"max_memory,omitempty"`

	// DefaultTTL is the item lifetime applied when a write carries no
	// explicit TTL (e.g., "5m"). Empty means items never expire.
	DefaultTTL string `yaml:"default_ttl,omitempty"`

	// CleanupInterval is how often the background sweep removes expired
	// items (e.g., "1m"). Empty disables the sweep.
	CleanupInterval string `yaml:"cleanup_interval,omitempty"`

	// Snapshot configures the optional Redis snapshot store.
	Snapshot *SnapshotConfig `yaml:"snapshot,omitempty"`
}

// SnapshotConfig configures cache persistence to Redis.
type SnapshotConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379/0").
	URL string `yaml:"url"`

	// Key is the Redis key snapshots are stored under.
	Key string `yaml:"key,omitempty"`
}

// RulesConfig configures the rule engine.
type RulesConfig struct {
	// HistoryCap bounds the retained execution history.
	HistoryCap int `yaml:"history_cap,omitempty"`

	// MaxGeneratedRules caps how many rules dynamic generators may add.
	MaxGeneratedRules int `yaml:"max_generated_rules,omitempty"`
}

// RetrievalConfig configures memory retrieval.
type RetrievalConfig struct {
	// DefaultLimit caps results when a query carries no explicit limit.
	DefaultLimit int `yaml:"default_limit,omitempty"`
}

// EnhancementConfig configures the asynchronous enhancement queue.
type EnhancementConfig struct {
	// PollInterval is how often the worker polls for pending tasks
	// (e.g., "1s").
	PollInterval string `yaml:"poll_interval,omitempty"`

	// PatternThreshold is the minimum improvement at which an
	// enhancement outcome is recorded as a learned pattern.
	PatternThreshold float64 `yaml:"pattern_threshold,omitempty"`
}

// GetDefaultTTL parses the default TTL string and returns a duration.
// Returns zero (never expire) if not set or invalid.
func (c *CacheConfig) GetDefaultTTL() time.Duration {
	if c == nil || c.DefaultTTL == "" {
		return 0
	}
	d, err := time.ParseDuration(c.DefaultTTL)
	if err != nil {
		return 0
	}
	return d
}

// GetCleanupInterval parses the cleanup interval string and returns a
// duration. Returns zero (sweep disabled) if not set or invalid.
func (c *CacheConfig) GetCleanupInterval() time.Duration {
	if c == nil || c.CleanupInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil {
		return 0
	}
	return d
}

// GetMaxSize returns the configured item cap or the default value.
func (c *CacheConfig) GetMaxSize() int {
	if c == nil || c.MaxSize <= 0 {
		return 1000
	}
	return c.MaxSize
}

// GetMaxMemory returns the configured memory budget or the default value.
func (c *CacheConfig) GetMaxMemory() int64 {
	if c == nil || c.MaxMemory <= 0 {
		return 64 << 20
	}
	return c.MaxMemory
}

// GetHistoryCap returns the configured history cap or the default value.
func (r *RulesConfig) GetHistoryCap() int {
	if r == nil || r.HistoryCap <= 0 {
		return 1000
	}
	return r.HistoryCap
}

// GetMaxGeneratedRules returns the configured generator cap or the
// default value.
func (r *RulesConfig) GetMaxGeneratedRules() int {
	if r == nil || r.MaxGeneratedRules <= 0 {
		return 100
	}
	return r.MaxGeneratedRules
}

// GetDefaultLimit returns the configured result cap or the default value.
func (r *RetrievalConfig) GetDefaultLimit() int {
	if r == nil || r.DefaultLimit <= 0 {
		return 10
	}
	return r.DefaultLimit
}

// GetPollInterval parses the poll interval string and returns a duration.
// Returns the default value if not set or invalid.
func (e *EnhancementConfig) GetPollInterval() time.Duration {
	if e == nil || e.PollInterval == "" {
		return time.Second
	}
	d, err := time.ParseDuration(e.PollInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// GetPatternThreshold returns the configured threshold or the default value.
func (e *EnhancementConfig) GetPatternThreshold() float64 {
	if e == nil || e.PatternThreshold <= 0 {
		return 0.1
	}
	return e.PatternThreshold
}

// Load reads and parses an engine.yaml file from the given path.
// If the path is a directory, it looks for engine.yaml or engine.yml in
// that directory.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	var configPath string
	if info.IsDir() {
		yamlPath := filepath.Join(path, "engine.yaml")
		if _, err := os.Stat(yamlPath); err == nil {
			configPath = yamlPath
		} else {
			ymlPath := filepath.Join(path, "engine.yml")
			if _, err := os.Stat(ymlPath); err == nil {
				configPath = ymlPath
			} else {
				return nil, fmt.Errorf("no engine.yaml or engine.yml found in %s", path)
			}
		}
	} else {
		configPath = path
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}
