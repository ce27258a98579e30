package cacher

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// MemoryCacher keeps values in process memory using go-cache, with a
// singleflight group preventing a stampede of fetches for the same key.
type MemoryCacher[T any] struct {
	cache *cache.Cache
	group singleflight.Group
	ttl   time.Duration
}

// NewMemoryCacher creates an in-memory cache whose entries live for ttl.
// Expired entries are swept every cleanupInterval.
//
// Parameters:
//   - ttl: Lifetime of fetched values
//   - cleanupInterval: Interval at which expired items are removed
//
// Returns:
//   - A new MemoryCacher instance
func NewMemoryCacher[T any](ttl, cleanupInterval time.Duration) *MemoryCacher[T] {
	return &MemoryCacher[T]{
		cache: cache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// GetOrFetch implements Cacher.
func (c *MemoryCacher[T]) GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc[T]) (T, error) {
	var zero T

	if val, found := c.cache.Get(key); found {
		if typedVal, ok := val.(T); ok {
			return typedVal, nil
		}
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		// Another caller may have filled the entry while we waited.
		if cachedVal, found := c.cache.Get(key); found {
			if typedVal, ok := cachedVal.(T); ok {
				return typedVal, nil
			}
		}

		fetchedVal, err := fetchFn(ctx)
		if err != nil {
			return zero, err
		}

		c.cache.Set(key, fetchedVal, c.ttl)
		return fetchedVal, nil
	})
	if err != nil {
		return zero, err
	}

	typedVal, ok := val.(T)
	if !ok {
		return zero, fmt.Errorf("unexpected type in cache for key %s", key)
	}

	return typedVal, nil
}

// Delete implements Cacher.
func (c *MemoryCacher[T]) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.cache.Delete(key)
	return nil
}
