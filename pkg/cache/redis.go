package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache stores entries in a shared redis instance.
type RedisCache struct {
	db *redis.Client
}

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	// host:port Addr.
	Addr     string
	Password string
	DB       int
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(ctx context.Context, o RedisOptions) (*RedisCache, error) {
	if o.Addr == "" {
		return nil, fmt.Errorf("cache/redis: connection address is required")
	}
	db := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	err := RetryWithBackoff(ctx, func() error {
		if err := db.Ping(ctx).Err(); err != nil {
			return Retryable(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cache/redis: error connecting to redis: %w", err)
	}
	return &RedisCache{db: db}, nil
}

// Get is equivalent to redis `GET key`.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set is equivalent to redis `SET key value [PX ttl]`.
func (c *RedisCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.db.Set(ctx, key, data, ttl).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.db.Close()
}

var _ Cache = (*RedisCache)(nil)
