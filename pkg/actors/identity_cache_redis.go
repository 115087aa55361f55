package actors

import (
	"context"
	"time"

	"github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/v8"
)

// IdentityCacheRedis caches identities in redis so all instances share one cache
type IdentityCacheRedis struct {
	Cache *cache.Cache
}

// NewIdentityCacheRedis initializes a new IdentityCacheRedis
func NewIdentityCacheRedis(redisClient *redis.Client) *IdentityCacheRedis {
	redisCache := cache.New(&cache.Options{
		Redis: redisClient,
	})

	return &IdentityCacheRedis{
		Cache: redisCache,
	}
}

// Add adds an identity
func (c *IdentityCacheRedis) Add(ctx context.Context, key string, identity *Identity) error {
	err := c.Cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: identity,
		TTL:   time.Minute * 10,
	})
	if err != nil {
		return err
	}

	return nil
}

// Invalidate invalidates an entry
func (c *IdentityCacheRedis) Invalidate(ctx context.Context, key string) error {
	err := c.Cache.Delete(ctx, key)
	if err != nil {
		return err
	}

	return nil
}

// Get retrieves an identity
func (c *IdentityCacheRedis) Get(ctx context.Context, key string) (*Identity, error) {
	result := Identity{}
	err := c.Cache.Get(ctx, key, &result)
	if err != nil {
		return nil, err
	}

	return &result, nil
}
