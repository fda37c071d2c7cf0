package domain

import "context"

// Provider is implemented by every LLM vendor adapter. Adapters are
// immutable after construction: changing the configured model means
// building a new adapter.
type Provider interface {
	// CreateMessage opens a streaming completion for the given system
	// prompt and conversation history. Content arrives as zero or more
	// text/reasoning chunks; a usage chunk, when the vendor reports one,
	// arrives after all content. The channel is closed exactly once when
	// the stream ends, fails, or the context is cancelled. A mid-stream
	// failure is delivered as a terminal error chunk.
	CreateMessage(ctx context.Context, system string, turns []Turn) (<-chan StreamChunk, error)

	// CompletePrompt sends a single prompt without history and returns
	// the trimmed full response text.
	CompletePrompt(ctx context.Context, prompt string) (string, error)

	// Model returns the resolved model descriptor. Unknown configured IDs
	// resolve to the vendor default.
	Model() ModelDescriptor

	// CountTokens estimates the token footprint of the given blocks. It
	// never fails: vendor-native counting falls back to the shared
	// estimator on any error.
	CountTokens(ctx context.Context, blocks []ContentBlock) int

	// Name returns the provider identifier.
	Name() string

	// SupportedModels returns the sorted model IDs this adapter knows.
	SupportedModels() []string

	// HasBuiltInRateLimit reports whether the underlying transport
	// already performs retry and backoff, in which case the gateway
	// skips its own pacing.
	HasBuiltInRateLimit() bool

	// Close releases background resources (pollers, batched logs, idle
	// connections). Safe to call more than once.
	Close() error
}

// ProviderRegistry manages available providers. Lookups are in-memory and
// never block.
type ProviderRegistry interface {
	// Register adds a provider under its reported name.
	Register(provider Provider) error

	// Get retrieves a provider by name.
	Get(name string) (Provider, error)

	// List returns all registered provider names, sorted.
	List() []string

	// ForModel returns a provider that serves the given model ID.
	ForModel(modelID string) (Provider, error)

	// CloseAll closes every registered provider, joining errors.
	CloseAll() error
}

// EventPublisher publishes events for observability.
type EventPublisher interface {
	// Publish publishes an event with the given type and data.
	Publish(ctx context.Context, eventType string, data map[string]interface{})
}

// TokenCounter estimates token counts without vendor calls. Adapters use
// it as the fallback behind CountTokens.
type TokenCounter interface {
	// Count estimates the token footprint of content blocks.
	Count(blocks []ContentBlock) int

	// CountText estimates the token footprint of a plain string.
	CountText(text string) int
}

// CostCalculator computes the USD cost of a request from model pricing and
// normalized usage.
type CostCalculator interface {
	// Cost returns the total cost for the given pricing and usage.
	Cost(info ModelInfo, usage Usage) float64
}
