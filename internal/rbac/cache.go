package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved permission slugs per user. Implementations may drop
// entries at any time; the resolver always falls back to the database.
type Cache interface {
	Get(ctx context.Context, userID int64) ([]string, bool)
	Set(ctx context.Context, userID int64, slugs []string)
	Invalidate(ctx context.Context, userID int64)
}

// NoopCache disables caching. Used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, int64) ([]string, bool) { return nil, false }
func (NoopCache) Set(context.Context, int64, []string)        {}
func (NoopCache) Invalidate(context.Context, int64)           {}

// RedisCache keeps resolved slugs in Redis with a short TTL so permission
// changes propagate even without explicit invalidation. Cache errors are
// logged and treated as misses; authorization never fails because Redis is
// down.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, ttl: ttl, logger: logger}
}

func (c *RedisCache) key(userID int64) string {
	return fmt.Sprintf("authkit:permissions:%d", userID)
}

func (c *RedisCache) Get(ctx context.Context, userID int64) ([]string, bool) {
	raw, err := c.client.Get(ctx, c.key(userID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("permission cache read failed", "user_id", userID, "error", err)
		}
		return nil, false
	}

	var slugs []string
	if err := json.Unmarshal(raw, &slugs); err != nil {
		c.logger.Warn("permission cache entry corrupt", "user_id", userID, "error", err)
		return nil, false
	}
	return slugs, true
}

func (c *RedisCache) Set(ctx context.Context, userID int64, slugs []string) {
	raw, err := json.Marshal(slugs)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("permission cache write failed", "user_id", userID, "error", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, userID int64) {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		c.logger.Warn("permission cache invalidation failed", "user_id", userID, "error", err)
	}
}
