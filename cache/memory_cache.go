package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopverse/category_service/models"
)

// MemoryCache implements CacheProvider in process memory
type MemoryCache struct {
	mu     sync.RWMutex
	nodes  []*models.CategoryNode
	ttl    time.Duration
	expiry time.Time
	now    func() time.Time
}

// NewMemoryCache creates a new in-memory cache provider
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		ttl: DefaultTTL,
		now: time.Now,
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *MemoryCache) Initialize(ctx context.Context) error {
	return nil
}

// GetTree returns a copy of the cached tree while it has not expired
func (c *MemoryCache) GetTree(ctx context.Context) ([]*models.CategoryNode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.nodes == nil || c.now().After(c.expiry) {
		return nil, false
	}
	return snapshot(c.nodes), true
}

// SetTree stores a copy of the tree
func (c *MemoryCache) SetTree(ctx context.Context, nodes []*models.CategoryNode) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodes = snapshot(nodes)
	c.expiry = c.now().Add(c.ttl)
}

// InvalidateCache removes the cached tree
func (c *MemoryCache) InvalidateCache(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nodes = nil
	c.expiry = time.Time{}
}

// SetCacheTTL sets the cache time-to-live and extends a cached tree by it
func (c *MemoryCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ttl = ttl
	if c.nodes != nil {
		c.expiry = c.now().Add(ttl)
	}
}
