// Package cache stores idempotency records for the HTTP edge.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get returns "" with a nil error when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	GenerateKey(operation, key string) string
	Close() error
}

type redisCache struct {
	client      *redis.Client
	serviceName string
}

// NewRedisCache connects lazily; use Ping to find out whether addr answers.
func NewRedisCache(addr, serviceName string) Cache {
	return &redisCache{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		}),
		serviceName: serviceName,
	}
}

// Ping is a no-op for caches that are not backed by Redis.
func Ping(ctx context.Context, c Cache) error {
	if rc, ok := c.(*redisCache); ok {
		return rc.client.Ping(ctx).Err()
	}
	return nil
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, nil
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return generateKey(r.serviceName, operation, key)
}

func (r *redisCache) Close() error { return r.client.Close() }

// generateKey namespaces keys as service:operation:key.
func generateKey(service, operation, key string) string {
	return service + ":" + operation + ":" + key
}
