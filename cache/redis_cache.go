package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopverse/category_service/logger"
	"github.com/shopverse/category_service/models"
)

const redisTreeKey = "categories:admin-tree"

// RedisCache implements CacheProvider using Redis
type RedisCache struct {
	client *redis.Client
	mu     sync.RWMutex
	ttl    time.Duration
}

// NewRedisCache creates a new Redis cache provider. addr defaults to
// localhost:6379.
func NewRedisCache(addr, password string, db int) *RedisCache {
	if addr == "" {
		addr = "localhost:6379"
	}
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// NewRedisCacheWithClient creates a Redis cache provider on an existing client
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    DefaultTTL,
	}
}

// Initialize checks that Redis answers
func (c *RedisCache) Initialize(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetTree retrieves the tree from Redis if available
func (c *RedisCache) GetTree(ctx context.Context) ([]*models.CategoryNode, bool) {
	data, err := c.client.Get(ctx, redisTreeKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Get().Warnw("redis cache read failed", "key", redisTreeKey, "error", err)
		}
		return nil, false
	}

	var nodes []*models.CategoryNode
	if err := json.Unmarshal(data, &nodes); err != nil {
		logger.Get().Warnw("discarding undecodable cached tree", "key", redisTreeKey, "error", err)
		return nil, false
	}
	return snapshot(nodes), true
}

// SetTree stores the tree in Redis
func (c *RedisCache) SetTree(ctx context.Context, nodes []*models.CategoryNode) {
	data, err := json.Marshal(snapshot(nodes))
	if err != nil {
		logger.Get().Warnw("failed to encode category tree for cache", "error", err)
		return
	}

	c.mu.RLock()
	ttl := c.ttl
	c.mu.RUnlock()

	if err := c.client.Set(ctx, redisTreeKey, data, ttl).Err(); err != nil {
		logger.Get().Warnw("redis cache write failed", "key", redisTreeKey, "error", err)
	}
}

// InvalidateCache removes the tree from Redis
func (c *RedisCache) InvalidateCache(ctx context.Context) {
	if err := c.client.Del(ctx, redisTreeKey).Err(); err != nil {
		logger.Get().Warnw("redis cache invalidation failed", "key", redisTreeKey, "error", err)
	}
}

// SetCacheTTL sets the cache time-to-live duration
func (c *RedisCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
