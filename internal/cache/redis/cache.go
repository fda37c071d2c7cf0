// Package redis implements the prompt cache on Redis. Entries are exact
// matches: the key is a SHA-256 over provider, model, and prompt; the
// value is the JSON-encoded completion.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

const keyPrefix = "cache:"

// PromptCache implements the domain.PromptCache interface on a Redis
// client.
type PromptCache struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewPromptCache creates a prompt cache. Entries written with a
// non-positive TTL expire after defaultTTL.
func NewPromptCache(client *redis.Client, defaultTTL time.Duration) *PromptCache {
	return &PromptCache{client: client, defaultTTL: defaultTTL}
}

// Get retrieves the completion cached under key, domain.ErrCacheMiss when
// absent.
func (c *PromptCache) Get(ctx context.Context, key domain.CacheKey) (*domain.CachedCompletion, error) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var entry domain.CachedCompletion
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cached completion: %w", err)
	}
	return &entry, nil
}

// Set stores a completion under key.
func (c *PromptCache) Set(ctx context.Context, key domain.CacheKey, completion *domain.CachedCompletion, ttl time.Duration) error {
	if completion == nil {
		return errors.New("completion cannot be nil")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	raw, err := json.Marshal(completion)
	if err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}

	observability.FromContext(ctx).Debug("completion cached",
		observability.String("model", completion.Model),
		observability.Duration("ttl", ttl))
	return nil
}

// Close releases the underlying Redis connection.
func (c *PromptCache) Close() error {
	return c.client.Close()
}

// cacheKey hashes the lookup fields. Provider and model never contain
// newlines, so the join is unambiguous.
func cacheKey(key domain.CacheKey) string {
	sum := sha256.Sum256([]byte(key.Provider + "\n" + key.Model + "\n" + key.Prompt))
	return keyPrefix + hex.EncodeToString(sum[:])
}
