package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	client *redis.Client
}

// New creates a new Redis client
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis ping failed: %w", err)
	}

	return &Client{client: client}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.client.Close()
}

// Get retrieves a value by key
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("key not found")
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value with TTL
func (c *Client) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// CheckRateLimit enforces the caller-facing per-API-key request limit.
// Fixed one-minute window: INCR then set the expiry on first increment, so
// concurrent callers cannot double-count. This guards the gateway edge
// only; provider-facing limits live in the sliding-window tracker.
func (c *Client) CheckRateLimit(ctx context.Context, apiKeyID string, limit int) (bool, int, error) {
	key := fmt.Sprintf("ratelimit:%s", apiKeyID)

	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		c.client.Expire(ctx, key, time.Minute)
	}

	if count > int64(limit) {
		return true, 0, nil
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return false, remaining, nil
}
