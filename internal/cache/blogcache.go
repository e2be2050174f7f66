// Package cache keeps a short-lived Redis snapshot of the normalized blog
// listing in front of the document store. Views tolerate staleness by
// design; the change-stream subscription refreshes the snapshot on every
// collection change.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"inkgate/internal/models"
)

const snapshotKey = "inkgate:blogs:snapshot"

type BlogCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBlogCache wraps a Redis client. A nil client yields a cache that always
// misses, so callers never have to care whether Redis is around.
func NewBlogCache(client *redis.Client, ttl time.Duration) *BlogCache {
	return &BlogCache{client: client, ttl: ttl}
}

// Get returns the cached listing snapshot, or ok=false on miss or any Redis
// trouble. Cache failures are never surfaced as errors; the store is the
// source of truth.
func (c *BlogCache) Get(ctx context.Context) (posts []*models.BlogPost, ok bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("blog cache read failed", "error", err)
		return nil, false
	}

	if err := json.Unmarshal(data, &posts); err != nil {
		slog.Warn("blog cache held an unreadable snapshot, dropping it", "error", err)
		c.Invalidate(ctx)
		return nil, false
	}
	return posts, true
}

// Set stores the listing snapshot with the configured TTL.
func (c *BlogCache) Set(ctx context.Context, posts []*models.BlogPost) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(posts)
	if err != nil {
		slog.Warn("failed to encode blog snapshot", "error", err)
		return
	}
	if err := c.client.Set(ctx, snapshotKey, data, c.ttl).Err(); err != nil {
		slog.Warn("blog cache write failed", "error", err)
	}
}

// Invalidate drops the snapshot after any local mutation, so the next read
// goes to the store instead of serving the pre-write state for a full TTL.
func (c *BlogCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, snapshotKey).Err(); err != nil {
		slog.Warn("blog cache invalidation failed", "error", err)
	}
}
