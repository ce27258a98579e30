package cacher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockTTL     = 10 * time.Second
	waitTimeout = 10 * time.Second
)

// releaseLock deletes the lock only while we still own it.
var releaseLock = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// RedisCacher stores JSON-encoded values in redis under a key prefix. A
// SETNX lock per key lets one process fetch while others poll for the
// result, so several servers sharing a redis instance also fetch once.
type RedisCacher[T any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCacher creates a cacher on client. Keys are stored as
// prefix + ":" + key and expire after ttl.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	users := NewRedisCacher[store.User](client, "termninja:cache:users", 30*time.Second)
func NewRedisCacher[T any](client *redis.Client, prefix string, ttl time.Duration) *RedisCacher[T] {
	return &RedisCacher[T]{client: client, prefix: prefix, ttl: ttl}
}

// GetOrFetch implements Cacher.
//
// On a miss it tries to take the key's lock. The owner fetches, stores the
// value and releases the lock. Everyone else polls with exponential backoff
// until the value appears or the wait times out. When the lock disappears
// without a value, the owner's fetch failed and the waiter fetches itself,
// so every caller sees the source's own error.
func (c *RedisCacher[T]) GetOrFetch(ctx context.Context, key string, fetchFn FetchFunc[T]) (T, error) {
	var zero T
	fullKey := c.key(key)

	result, found, err := c.get(ctx, fullKey)
	if err != nil || found {
		return result, err
	}

	lockKey := fullKey + ":lock"
	lockValue := strconv.FormatInt(time.Now().UnixNano(), 10)

	acquired, err := c.client.SetNX(ctx, lockKey, lockValue, lockTTL).Result()
	if err != nil {
		return zero, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		return c.waitForCache(ctx, fullKey, lockKey, fetchFn)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		releaseLock.Run(releaseCtx, c.client, []string{lockKey}, lockValue)
	}()

	result, err = fetchFn(ctx)
	if err != nil {
		return zero, err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := c.client.Set(ctx, fullKey, data, c.ttl).Err(); err != nil {
		return zero, fmt.Errorf("failed to cache result: %w", err)
	}

	return result, nil
}

func (c *RedisCacher[T]) waitForCache(ctx context.Context, key, lockKey string, fetchFn FetchFunc[T]) (T, error) {
	var zero T

	backoff := 10 * time.Millisecond
	maxBackoff := 500 * time.Millisecond
	deadline := time.Now().Add(waitTimeout)

	for time.Now().Before(deadline) {
		result, found, err := c.get(ctx, key)
		if err != nil || found {
			return result, err
		}

		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return zero, fmt.Errorf("failed to check lock existence: %w", err)
		}

		if exists == 0 {
			// Last look in case the value landed just before the release.
			result, found, err := c.get(ctx, key)
			if err != nil || found {
				return result, err
			}
			return fetchFn(ctx)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(backoff):
		}

		backoff = min(backoff*2, maxBackoff)
	}

	return zero, errors.New("timeout waiting for cache")
}

func (c *RedisCacher[T]) get(ctx context.Context, key string) (T, bool, error) {
	var result T

	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return result, false, nil
	}
	if err != nil {
		return result, false, fmt.Errorf("redis get error: %w", err)
	}

	if err := json.Unmarshal(val, &result); err != nil {
		return result, false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return result, true, nil
}

// Delete implements Cacher.
func (c *RedisCacher[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

func (c *RedisCacher[T]) key(key string) string {
	return c.prefix + ":" + key
}
