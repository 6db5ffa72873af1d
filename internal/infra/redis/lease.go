// Package redis provides TTL lease locks for scan targets. Only needed when
// multiple coordinator instances share one database; a single instance relies
// on its in-memory exclusion alone.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// Client wraps Redis lease operations.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func leaseKey(target string) string {
	return fmt.Sprintf("scan_lease:%s", target)
}

// releaseScript deletes the lease only if the caller still holds it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// Acquire takes a TTL lease on target. Returns the lease token and true on
// success, or false when another instance holds the lease.
func (c *Client) Acquire(ctx context.Context, target string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, leaseKey(target), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("lease acquire failed: %w", err)
	}
	return token, ok, nil
}

// Renew extends the lease TTL if the caller still holds it.
func (c *Client) Renew(ctx context.Context, target, token string, ttl time.Duration) (bool, error) {
	val, err := c.rdb.Get(ctx, leaseKey(target)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lease renew failed: %w", err)
	}
	if val != token {
		return false, nil
	}
	if err := c.rdb.Expire(ctx, leaseKey(target), ttl).Err(); err != nil {
		return false, fmt.Errorf("lease renew failed: %w", err)
	}
	return true, nil
}

// Release frees the lease if the caller still holds it. Safe to call after
// expiry; a stolen lease is never deleted.
func (c *Client) Release(ctx context.Context, target, token string) error {
	if err := releaseScript.Run(ctx, c.rdb, []string{leaseKey(target)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("lease release failed: %w", err)
	}
	return nil
}
