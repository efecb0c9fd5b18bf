// Package cache fronts the normalizer's output with a TTL keyed cache.
// Caching is strictly best-effort: backend failures surface as misses
// on the read path and are swallowed on the write path, so the
// pipeline degrades to always-fetch-fresh rather than erroring.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/bdcache"
	"github.com/codeGROOVE-dev/bdcache/persist/localfs"

	"github.com/chillgits/chillgits/profile"
)

// keyPrefix namespaces profile entries in the shared store.
const keyPrefix = "chillgits:profile:"

// DefaultTTL is the freshness window for a cached aggregation. An hour
// of staleness is acceptable for a share-card dashboard, and the
// payload is already reduced (capped repo and activity lists) to keep
// entries small.
const DefaultTTL = time.Hour

// ProfileCache stores serialized aggregations keyed by handle. The
// zero-value-like disabled variant (from Disabled) always misses.
type ProfileCache struct {
	cache  *bdcache.Cache[string, []byte]
	logger *slog.Logger
	ttl    time.Duration
}

// New creates a connected cache with disk persistence at cachePath,
// defaulting to the user cache directory.
func New(ttl time.Duration, cachePath string, logger *slog.Logger) (*ProfileCache, error) {
	if cachePath == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		cachePath = filepath.Join(dir, "chillgits")
	}
	if err := os.MkdirAll(cachePath, 0o750); err != nil {
		return nil, err
	}

	persist, err := localfs.New[string, []byte]("chillgits", cachePath)
	if err != nil {
		return nil, err
	}

	c, err := bdcache.New[string, []byte](
		context.Background(),
		bdcache.WithPersistence(persist),
		bdcache.WithDefaultTTL(ttl),
	)
	if err != nil {
		return nil, err
	}

	return &ProfileCache{cache: c, logger: logger, ttl: ttl}, nil
}

// Disabled creates a cache that always misses and discards writes.
// Selected at startup when the backend cannot be initialized.
func Disabled(logger *slog.Logger) *ProfileCache {
	return &ProfileCache{logger: logger}
}

// Enabled reports whether a backend is connected.
func (c *ProfileCache) Enabled() bool { return c.cache != nil }

// TTL returns the configured freshness window.
func (c *ProfileCache) TTL() time.Duration { return c.ttl }

// Get returns the cached aggregation for a handle. Absent, expired, or
// unparsable entries all read as a miss; corruption never propagates.
func (c *ProfileCache) Get(ctx context.Context, handle string) (profile.Aggregated, bool) {
	if c.cache == nil {
		return profile.Aggregated{}, false
	}

	data, found, err := c.cache.Get(ctx, Key(handle))
	if err != nil || !found {
		if err != nil {
			c.logger.Warn("cache read failed", "handle", handle, "error", err)
		}
		return profile.Aggregated{}, false
	}

	var agg profile.Aggregated
	if err := json.Unmarshal(data, &agg); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "handle", handle, "error", err)
		return profile.Aggregated{}, false
	}
	return agg, true
}

// Set stores a complete aggregation under the handle's key. Failures
// are logged and swallowed.
func (c *ProfileCache) Set(ctx context.Context, handle string, agg profile.Aggregated) {
	if c.cache == nil {
		return
	}

	data, err := json.Marshal(agg)
	if err != nil {
		c.logger.Warn("cache serialization failed", "handle", handle, "error", err)
		return
	}
	if err := c.cache.Set(ctx, Key(handle), data, c.ttl); err != nil {
		c.logger.Warn("cache write failed", "handle", handle, "error", err)
	}
}

// Close flushes and closes the backend.
func (c *ProfileCache) Close() error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Close()
}

// Key returns the namespaced cache key for a handle. Handles are
// case-insensitive upstream, so the key is always lowercase.
func Key(handle string) string {
	return keyPrefix + strings.ToLower(handle)
}
