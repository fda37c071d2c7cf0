package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/hearth/internal/observability"
)

// GatewayService orchestrates requests to providers: registry lookup,
// prompt-cache consultation, pacing, and cost accounting.
type GatewayService struct {
	registry ProviderRegistry
	costs    CostCalculator
	cache    PromptCache
	events   EventPublisher
	pacer    *Pacer
}

// NewGatewayService creates a new gateway service (DI constructor). Cache
// and events may be nil; pacing is skipped when pacer is nil.
func NewGatewayService(
	registry ProviderRegistry,
	costs CostCalculator,
	cache PromptCache,
	events EventPublisher,
	pacer *Pacer,
) *GatewayService {
	return &GatewayService{
		registry: registry,
		costs:    costs,
		cache:    cache,
		events:   events,
		pacer:    pacer,
	}
}

// CreateMessage opens a stream from the named provider.
func (g *GatewayService) CreateMessage(
	ctx context.Context,
	providerName string,
	system string,
	turns []Turn,
) (<-chan StreamChunk, error) {
	if providerName == "" {
		return nil, NewError(ErrCodeValidation, "", "provider name cannot be empty")
	}
	if len(turns) == 0 {
		return nil, NewError(ErrCodeValidation, providerName, "conversation cannot be empty")
	}

	provider, err := g.registry.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("provider not found: %w", err)
	}

	ctx = annotate(ctx, provider, "stream")

	if err := g.pace(ctx, provider); err != nil {
		return nil, err
	}

	chunks, err := provider.CreateMessage(ctx, system, turns)
	if err != nil {
		return nil, fmt.Errorf("failed to stream from provider: %w", err)
	}

	g.publish(ctx, "message_stream_started", map[string]interface{}{
		"provider": provider.Name(),
		"model":    provider.Model().ID,
		"turns":    len(turns),
	})

	return chunks, nil
}

// ExchangeResult is a fully drained streaming exchange.
type ExchangeResult struct {
	Text      string `json:"text"`
	Reasoning string `json:"reasoning,omitempty"`
	Usage     Usage  `json:"usage"`
}

// Exchange runs CreateMessage and drains the stream into an accumulated
// result. When the vendor did not report a total cost, it is computed from
// the model's pricing.
func (g *GatewayService) Exchange(
	ctx context.Context,
	providerName string,
	system string,
	turns []Turn,
) (*ExchangeResult, error) {
	if providerName == "" {
		return nil, NewError(ErrCodeValidation, "", "provider name cannot be empty")
	}

	provider, err := g.registry.Get(providerName)
	if err != nil {
		return nil, fmt.Errorf("provider not found: %w", err)
	}

	chunks, err := g.CreateMessage(ctx, providerName, system, turns)
	if err != nil {
		return nil, err
	}

	var text, reasoning strings.Builder
	var usage Usage

	for chunk := range chunks {
		switch chunk.Type {
		case ChunkText:
			text.WriteString(chunk.Text)
		case ChunkReasoning:
			reasoning.WriteString(chunk.Text)
		case ChunkUsage:
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
		case ChunkError:
			return nil, fmt.Errorf("stream failed: %w", chunk.Err)
		}
	}

	if usage.TotalCost == nil && g.costs != nil {
		cost := g.costs.Cost(provider.Model().Info, usage)
		usage.TotalCost = &cost
	}

	g.publish(ctx, "message_exchange_finished", map[string]interface{}{
		"provider":      provider.Name(),
		"model":         provider.Model().ID,
		"input_tokens":  usage.InputTokens,
		"output_tokens": usage.OutputTokens,
	})

	return &ExchangeResult{
		Text:      text.String(),
		Reasoning: reasoning.String(),
		Usage:     usage,
	}, nil
}

// CompletePrompt returns the full text for a single prompt, consulting the
// prompt cache before calling the provider.
func (g *GatewayService) CompletePrompt(
	ctx context.Context,
	providerName string,
	prompt string,
) (string, error) {
	if providerName == "" {
		return "", NewError(ErrCodeValidation, "", "provider name cannot be empty")
	}
	if prompt == "" {
		return "", NewError(ErrCodeValidation, providerName, "prompt cannot be empty")
	}

	provider, err := g.registry.Get(providerName)
	if err != nil {
		return "", fmt.Errorf("provider not found: %w", err)
	}

	model := provider.Model()
	ctx = annotate(ctx, provider, "complete")
	logger := observability.FromContext(ctx)

	key := CacheKey{Provider: provider.Name(), Model: model.ID, Prompt: prompt}

	if g.cache != nil {
		cached, cacheErr := g.cache.Get(ctx, key)
		if cacheErr != nil && !errors.Is(cacheErr, ErrCacheMiss) {
			logger.Warn("cache get failed, continuing without cache",
				observability.Error(cacheErr))
		}
		if cached != nil {
			logger.Debug("prompt cache hit",
				observability.String("cached_model", cached.Model))
			g.publish(ctx, "prompt_cache_hit", map[string]interface{}{
				"provider": provider.Name(),
				"model":    model.ID,
			})
			return cached.Text, nil
		}
	}

	if err := g.pace(ctx, provider); err != nil {
		return "", err
	}

	text, err := provider.CompletePrompt(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if g.cache != nil {
		entry := &CachedCompletion{Text: text, Model: model.ID, CachedAt: time.Now()}
		if setErr := g.cache.Set(ctx, key, entry, 0); setErr != nil {
			logger.Warn("failed to store in cache",
				observability.Error(setErr))
		}
	}

	g.publish(ctx, "prompt_completed", map[string]interface{}{
		"provider": provider.Name(),
		"model":    model.ID,
	})

	return text, nil
}

// ProviderModel pairs a provider name with its resolved descriptor.
type ProviderModel struct {
	Provider string          `json:"provider"`
	Model    ModelDescriptor `json:"model"`
}

// Models returns the resolved descriptor of every registered provider.
func (g *GatewayService) Models() ([]ProviderModel, error) {
	names := g.registry.List()

	models := make([]ProviderModel, 0, len(names))
	for _, name := range names {
		provider, err := g.registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("provider not found: %w", err)
		}
		models = append(models, ProviderModel{Provider: name, Model: provider.Model()})
	}

	return models, nil
}

// RouteModel finds the name of the provider that serves the given model.
// Requests that name a model instead of a vendor are routed this way.
func (g *GatewayService) RouteModel(modelID string) (string, error) {
	if modelID == "" {
		return "", NewError(ErrCodeValidation, "", "model ID cannot be empty")
	}

	provider, err := g.registry.ForModel(modelID)
	if err != nil {
		return "", err
	}

	return provider.Name(), nil
}

// pace waits out the configured minimum interval between provider calls.
// Providers with built-in rate limiting are never paced.
func (g *GatewayService) pace(ctx context.Context, provider Provider) error {
	if g.pacer == nil || provider.HasBuiltInRateLimit() {
		return nil
	}
	if err := g.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait interrupted: %w", err)
	}
	return nil
}

func (g *GatewayService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if g.events == nil {
		return
	}
	g.events.Publish(ctx, eventType, data)
}

func annotate(ctx context.Context, provider Provider, mode string) context.Context {
	ctx = observability.WithProvider(ctx, provider.Name())
	ctx = observability.WithModel(ctx, provider.Model().ID)
	return observability.WithMode(ctx, mode)
}
