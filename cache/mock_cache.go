package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopverse/category_service/models"
)

// ErrCacheInitialization is returned when the mock cache is configured to fail
var ErrCacheInitialization = errors.New("mock cache initialization failed")

type cacheOp int

const (
	opGet cacheOp = iota
	opSet
	opInvalidate
	opSetTTL
	opInit
	opCount
)

// MockCache records the calls made to a MemoryCache and can simulate a
// backend that is down, in which case every read misses and writes are lost.
type MockCache struct {
	backend *MemoryCache

	mu    sync.Mutex
	calls [opCount]int
	down  bool
}

// NewMockCache creates a recording cache over a fresh MemoryCache
func NewMockCache() *MockCache {
	return &MockCache{backend: NewMemoryCache()}
}

// record counts op and reports whether the backend should be reached
func (c *MockCache) record(op cacheOp) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[op]++
	return !c.down
}

// Initialize fails while the cache is down
func (c *MockCache) Initialize(ctx context.Context) error {
	if !c.record(opInit) {
		return ErrCacheInitialization
	}
	return c.backend.Initialize(ctx)
}

// GetTree misses while the cache is down
func (c *MockCache) GetTree(ctx context.Context) ([]*models.CategoryNode, bool) {
	if !c.record(opGet) {
		return nil, false
	}
	return c.backend.GetTree(ctx)
}

// SetTree drops the write while the cache is down
func (c *MockCache) SetTree(ctx context.Context, nodes []*models.CategoryNode) {
	if c.record(opSet) {
		c.backend.SetTree(ctx, nodes)
	}
}

func (c *MockCache) InvalidateCache(ctx context.Context) {
	if c.record(opInvalidate) {
		c.backend.InvalidateCache(ctx)
	}
}

func (c *MockCache) SetCacheTTL(ttl time.Duration) {
	if c.record(opSetTTL) {
		c.backend.SetCacheTTL(ttl)
	}
}

// Reset clears the counters, brings the cache back up and empties it
func (c *MockCache) Reset() {
	c.mu.Lock()
	c.calls = [opCount]int{}
	c.down = false
	c.mu.Unlock()
	c.backend.InvalidateCache(context.Background())
}

// GetCallCounts returns the number of times each method was called
func (c *MockCache) GetCallCounts() (getTree, setTree, invalidate, setTTL, init int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[opGet], c.calls[opSet], c.calls[opInvalidate], c.calls[opSetTTL], c.calls[opInit]
}

// SetShouldFail takes the cache down or brings it back up
func (c *MockCache) SetShouldFail(shouldFail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.down = shouldFail
}

// Failing reports whether the cache is down
func (c *MockCache) Failing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.down
}
