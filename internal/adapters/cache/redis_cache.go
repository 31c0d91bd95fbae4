package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"toolhub/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// KeyPrefix namespaces every key this application writes
const KeyPrefix = "toolhub:"

// RedisCache stores JSON values in Redis
type RedisCache struct {
	rdb *redis.Client
}

// New wraps an existing client
func New(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

// Connect opens a client from config and pings it
func Connect(ctx context.Context, cfg config.RedisConfig) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return New(rdb), nil
}

func key(k string) string { return KeyPrefix + k }

// Get decodes the value at key into dst. A missing key is not an error.
func (c *RedisCache) Get(ctx context.Context, k string, dst any) (bool, error) {
	b, err := c.rdb.Get(ctx, key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", k, err)
	}
	return true, nil
}

// Set stores value as JSON for ttl
func (c *RedisCache) Set(ctx context.Context, k string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key(k), b, ttl).Err()
}

// Delete removes keys
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = key(k)
	}
	return c.rdb.Del(ctx, full...).Err()
}

// Ping checks the connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the client
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
