package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/shopverse/category_service/models"
	"github.com/shopverse/category_service/tree"
)

// DefaultTTL is how long a cached category tree stays valid unless changed
const DefaultTTL = 5 * time.Minute

// CacheProvider defines the interface for cache implementations.
// It caches the fully assembled admin category tree.
type CacheProvider interface {
	// GetTree retrieves the category tree from cache if available.
	// Returns the tree and whether it was found. Backend failures count as
	// a miss.
	GetTree(ctx context.Context) ([]*models.CategoryNode, bool)

	// SetTree stores the category tree. Failures are logged, not returned.
	SetTree(ctx context.Context, nodes []*models.CategoryNode)

	// InvalidateCache removes the cached tree.
	// This is called after every category mutation.
	InvalidateCache(ctx context.Context)

	// SetCacheTTL sets the time-to-live of entries stored from now on.
	SetCacheTTL(ttl time.Duration)

	// Initialize performs any necessary setup, such as connecting to the
	// backend or creating its table.
	Initialize(ctx context.Context) error
}

// Backend names accepted by New
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendNone     = "none"
)

// Options select and configure a cache backend
type Options struct {
	Backend       string
	TTL           time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	DynamoTable   string
}

// New creates and initializes the cache provider named by opts.Backend. An
// empty backend means the in-memory cache.
func New(ctx context.Context, opts Options) (CacheProvider, error) {
	var provider CacheProvider
	switch opts.Backend {
	case "", BackendMemory:
		provider = NewMemoryCache()
	case BackendRedis:
		provider = NewRedisCache(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	case BackendDynamoDB:
		c, err := NewDynamoDBCache(ctx, opts.DynamoTable)
		if err != nil {
			return nil, fmt.Errorf("failed to create dynamodb cache: %w", err)
		}
		provider = c
	case BackendNone:
		provider = NoopCache{}
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}

	if opts.TTL > 0 {
		provider.SetCacheTTL(opts.TTL)
	}
	if err := provider.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s cache: %w", opts.Backend, err)
	}
	return provider, nil
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) GetTree(context.Context) ([]*models.CategoryNode, bool) { return nil, false }
func (NoopCache) SetTree(context.Context, []*models.CategoryNode) {}
func (NoopCache) InvalidateCache(context.Context) {}
func (NoopCache) SetCacheTTL(time.Duration) {}
func (NoopCache) Initialize(context.Context) error { return nil }

// snapshot keeps callers from mutating cached trees
func snapshot(nodes []*models.CategoryNode) []*models.CategoryNode {
	out := tree.Clone(nodes)
	if out == nil {
		out = make([]*models.CategoryNode, 0)
	}
	return out
}
