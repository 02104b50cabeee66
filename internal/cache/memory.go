package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type MemoryCache struct {
	cache *gocache.Cache
}

func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: gocache.New(defaultTTL, cleanupInterval),
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool) {
	if val, found := c.cache.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a copy of value. A zero ttl uses the cache default.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.DefaultExpiration
	}
	c.cache.Set(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.cache.Delete(k)
	}
	return nil
}

func (c *MemoryCache) Clear(context.Context) error {
	c.cache.Flush()
	return nil
}
