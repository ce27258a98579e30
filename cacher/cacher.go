// Package cacher caches values fetched from a slower source, such as user
// records looked up by play token, with one fetch per key in flight.
package cacher

import "context"

// FetchFunc loads a value from the source on a cache miss.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Cacher caches values with automatic fetching on misses. Implementations
// are safe for concurrent use and collapse concurrent misses on the same
// key into a single fetch. Failed fetches are never cached.
type Cacher[T any] interface {
	// GetOrFetch returns the cached value for key, or calls fetchFn and
	// caches its result for the cacher's TTL.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key to retrieve or set
	//   - fetchFn: Function to fetch the value if not in cache
	//
	// Returns:
	//   - The cached or fetched value of type T
	//   - An error if retrieval or fetching fails
	GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc[T]) (T, error)

	// Delete removes a key from the cache so the next GetOrFetch goes
	// back to the source.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - key: The cache key to evict
	//
	// Returns:
	//   - An error if the eviction fails
	Delete(ctx context.Context, key string) error
}
