// Package redis is a tokencache driver backed by Redis, for terminals that
// share a cache server or run without a writable disk.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aussiebroadwan/tillsession/pkg/tokencache"
)

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string

	// Password is the Redis server password.
	Password string

	// DB is the Redis database number.
	DB int

	// Prefix namespaces every key as "prefix:key". Empty means no prefix.
	Prefix string

	// TTL applied on Set. Zero means the key never expires.
	TTL time.Duration

	// DialTimeout bounds connection establishment (default 5s).
	DialTimeout time.Duration
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("redis: addr is required")
	}
	if c.TTL < 0 {
		return fmt.Errorf("redis: ttl must be >= 0, got %s", c.TTL)
	}
	return nil
}

// Cache stores session keys in Redis.
type Cache struct {
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ tokencache.Cache = (*Cache)(nil)

// New dials Redis and verifies the connection with a PING.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	c := NewFromClient(rdb, cfg.Prefix, cfg.TTL)
	if err := c.Ping(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return c, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *goredis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *Cache) fullKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Ping verifies the Redis connection is alive.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.fullKey(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, true, nil
}

func (c *Cache) Set(ctx context.Context, key, value string) error {
	if err := c.rdb.Set(ctx, c.fullKey(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (c *Cache) Remove(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
