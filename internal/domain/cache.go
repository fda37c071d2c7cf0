package domain

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss indicates no cached entry was found.
var ErrCacheMiss = errors.New("cache miss")

// CacheKey identifies a cached completion. Two requests share an entry
// only when provider, model and prompt all match exactly.
type CacheKey struct {
	Provider string
	Model    string
	Prompt   string
}

// CachedCompletion is a stored non-streaming response with metadata.
type CachedCompletion struct {
	Text     string    `json:"text"`
	Usage    Usage     `json:"usage"`
	Model    string    `json:"model"`
	CachedAt time.Time `json:"cached_at"`
}

// PromptCache stores completions for exact prompt repeats. Only the
// non-streaming path consults it.
type PromptCache interface {
	// Get retrieves the cached completion for key, ErrCacheMiss when
	// absent.
	Get(ctx context.Context, key CacheKey) (*CachedCompletion, error)

	// Set stores a completion under key. A non-positive TTL falls back
	// to the cache's configured default.
	Set(ctx context.Context, key CacheKey, completion *CachedCompletion, ttl time.Duration) error

	// Close releases the underlying connection.
	Close() error
}
