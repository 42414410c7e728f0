package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mrmushfiq/llm0-orchestrator/internal/gateway/providers"
	"github.com/mrmushfiq/llm0-orchestrator/internal/shared/redis"
)

type Cache struct {
	redis *redis.Client
}

// New creates a new cache instance
func New(redisClient *redis.Client) *Cache {
	return &Cache{redis: redisClient}
}

// generateCacheKey hashes the canonical JSON form of the request. The
// stream flag is excluded: a cached non-stream response never serves a
// stream request anyway, and the handler only consults the cache for
// non-stream calls.
func (c *Cache) generateCacheKey(req providers.ChatRequest) string {
	req.Stream = false
	keyData, err := json.Marshal(req)
	if err != nil {
		keyData = []byte(fmt.Sprintf("%v", req))
	}

	hash := sha256.Sum256(keyData)
	return "cache:exact:" + hex.EncodeToString(hash[:])
}

// Get retrieves a cached response
func (c *Cache) Get(ctx context.Context, req providers.ChatRequest) (*providers.ChatResponse, error) {
	key := c.generateCacheKey(req)

	val, err := c.redis.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var cachedResp providers.ChatResponse
	if err := json.Unmarshal([]byte(val), &cachedResp); err != nil {
		return nil, fmt.Errorf("failed to deserialize cached response: %w", err)
	}

	return &cachedResp, nil
}

// Set stores a response in cache
func (c *Cache) Set(ctx context.Context, req providers.ChatRequest, resp *providers.ChatResponse, ttl time.Duration) error {
	key := c.generateCacheKey(req)

	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to serialize response: %w", err)
	}

	return c.redis.Set(ctx, key, string(data), ttl)
}
