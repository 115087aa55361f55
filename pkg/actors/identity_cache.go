package actors

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// IdentityCacheInterface caches identity lookups in front of the identity collaborator
type IdentityCacheInterface interface {
	Add(ctx context.Context, key string, identity *Identity) error
	Invalidate(ctx context.Context, key string) error
	Get(ctx context.Context, key string) (*Identity, error)
}

// IdentityCacheMemory is an in-process LRU identity cache
type IdentityCacheMemory struct {
	Cache *lru.Cache
}

// NewIdentityCacheMemory initializes a new IdentityCacheMemory
func NewIdentityCacheMemory(size int) (*IdentityCacheMemory, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &IdentityCacheMemory{
		Cache: cache,
	}, nil
}

// Add adds an identity to the cache
func (c *IdentityCacheMemory) Add(_ context.Context, key string, identity *Identity) error {
	_ = c.Cache.Add(key, identity)
	return nil
}

// Invalidate removes an identity from the cache
func (c *IdentityCacheMemory) Invalidate(_ context.Context, key string) error {
	c.Cache.Remove(key)
	return nil
}

// Get retrieves an identity from the cache
func (c *IdentityCacheMemory) Get(_ context.Context, key string) (*Identity, error) {
	result, ok := c.Cache.Get(key)
	if !ok {
		return nil, fmt.Errorf("could not find key %s in identity cache", key)
	}

	identity, ok := result.(*Identity)
	if !ok {
		return nil, fmt.Errorf("cache entry was not an identity")
	}

	return identity, nil
}
