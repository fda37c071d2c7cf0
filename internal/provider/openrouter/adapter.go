// Package openrouter adapts the OpenRouter routing API. The wire dialect
// is OpenAI-compatible with a per-request cost extension, and the model
// table is fetched live at construction instead of being compiled in.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider"
	"github.com/davidbz/hearth/internal/retry"
	"github.com/davidbz/hearth/internal/streaming"
)

const (
	providerName   = "openrouter"
	defaultBaseURL = "https://openrouter.ai"

	chatCompletionsPath = "/api/v1/chat/completions"
	modelsPath          = "/api/v1/models"
)

// Provider implements the domain.Provider interface for OpenRouter.
type Provider struct {
	client      *provider.Client
	estimator   domain.TokenCounter
	models      map[string]domain.ModelInfo
	model       domain.ModelDescriptor
	baseURL     string
	apiKey      string
	temperature float64
	referer     string
	title       string
}

// NewProvider creates an OpenRouter provider. The live model list is
// fetched once under ctx; when the fetch fails the provider degrades to
// the default model instead of failing construction.
func NewProvider(ctx context.Context, cfg Config, estimator domain.TokenCounter) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	p := &Provider{
		client:      provider.NewClient(providerName, time.Duration(cfg.Timeout)*time.Second, retry.DefaultPolicy()),
		estimator:   estimator,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		referer:     cfg.Referer,
		title:       cfg.Title,
	}

	p.models = p.fetchModels(ctx)
	p.model = domain.ResolveModel(p.models, cfg.Model, defaultModelID)

	return p, nil
}

// CreateMessage opens a streaming completion and normalizes the event
// stream into chunks.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	payload := chatRequest{
		ChatRequest: provider.ChatRequest{
			Model:       p.model.ID,
			Messages:    provider.ChatMessages(system, turns),
			Temperature: p.temperature,
			Stream:      true,
		},
		// Cost accounting rides on the final usage frame.
		Usage: &usageOptions{Include: true},
	}

	pipe := streaming.NewPipe(ctx, providerName, streaming.DefaultStallTimeout)

	resp, err := p.client.Stream(pipe.Context(), func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, chatCompletionsPath, payload)
	})
	if err != nil {
		pipe.Close()
		return nil, err
	}

	pipe.Arm()
	go p.consume(ctx, resp, pipe)

	return pipe.Out(), nil
}

// CompletePrompt sends a single non-streaming prompt and returns the
// trimmed response text.
func (p *Provider) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	payload := chatRequest{
		ChatRequest: provider.ChatRequest{
			Model:       p.model.ID,
			Messages:    []provider.ChatMessage{{Role: "user", Content: prompt}},
			Temperature: p.temperature,
		},
	}

	body, err := p.client.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, chatCompletionsPath, payload)
	})
	if err != nil {
		return "", err
	}

	var resp provider.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.WrapError(domain.ErrCodeProvider, providerName,
			fmt.Errorf("failed to decode response: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewError(domain.ErrCodeProvider, providerName, "response contained no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Model returns the resolved model descriptor.
func (p *Provider) Model() domain.ModelDescriptor { return p.model }

// CountTokens estimates with the shared estimator.
func (p *Provider) CountTokens(_ context.Context, blocks []domain.ContentBlock) int {
	return p.estimator.Count(blocks)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// SupportedModels returns the sorted IDs of the fetched model list.
func (p *Provider) SupportedModels() []string { return provider.ModelIDs(p.models) }

// HasBuiltInRateLimit reports that pacing is the caller's job.
func (p *Provider) HasBuiltInRateLimit() bool { return false }

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.Close()
	return nil
}

// fetchModels pulls the live model list. Any failure degrades to the
// fallback table so construction never depends on the endpoint.
func (p *Provider) fetchModels(ctx context.Context) map[string]domain.ModelInfo {
	logger := observability.FromContext(ctx)

	body, err := p.client.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+modelsPath, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		return req, nil
	})
	if err != nil {
		logger.Warn("model list fetch failed, using the default model only",
			observability.Error(err))
		return fallbackModels
	}

	var list modelList
	if err := json.Unmarshal(body, &list); err != nil || len(list.Data) == 0 {
		logger.Warn("model list unreadable, using the default model only",
			observability.Error(err))
		return fallbackModels
	}

	table := make(map[string]domain.ModelInfo, len(list.Data))
	for _, entry := range list.Data {
		table[entry.ID] = entry.toModelInfo()
	}
	if _, ok := table[defaultModelID]; !ok {
		table[defaultModelID] = fallbackModels[defaultModelID]
	}
	return table
}

func (p *Provider) consume(ctx context.Context, resp *http.Response, pipe *streaming.Pipe) {
	defer resp.Body.Close()
	defer pipe.Close()

	logger := observability.FromContext(ctx)

	var usage domain.Usage
	sawUsage := false

	err := provider.ScanSSE(resp.Body, func(ev provider.Event) error {
		if ev.Data == provider.ChatStreamDone {
			return nil
		}

		var chunk provider.ChatChunk
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			logger.Debug("skipping malformed stream event", observability.Error(err))
			return nil
		}

		if chunk.Error != nil {
			return domain.NewError(domain.ErrCodeProvider, providerName, chunk.Error.Message)
		}

		if chunk.Usage != nil {
			usage = provider.NormalizeChatUsage(*chunk.Usage)
			if chunk.Usage.Cost != nil && *chunk.Usage.Cost > 0 {
				cost := *chunk.Usage.Cost
				usage.TotalCost = &cost
			}
			sawUsage = true
		}

		if len(chunk.Choices) == 0 {
			return nil
		}
		delta := chunk.Choices[0].Delta
		if !pipe.EmitReasoning(delta.Reasoning) || !pipe.EmitText(delta.Content) {
			return context.Cause(pipe.Context())
		}
		return nil
	})

	switch {
	case err == nil:
		if sawUsage {
			pipe.CloseWithUsage(usage)
		}
	case pipe.Stalled():
		logger.Warn("stream stalled, finalizing with partial results")
		if sawUsage {
			pipe.CloseWithUsage(usage)
		}
	case errors.Is(err, context.Canceled):
		// Caller cancelled; nothing left to deliver.
	default:
		var derr *domain.Error
		if !errors.As(err, &derr) {
			err = domain.WrapError(domain.ErrCodeUnavailable, providerName, err)
		}
		pipe.Fail(err)
	}
}

func (p *Provider) newRequest(ctx context.Context, path string, payload chatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("HTTP-Referer", p.referer)
	req.Header.Set("X-Title", p.title)
	return req, nil
}

// chatRequest extends the shared wire request with OpenRouter's usage
// accounting option.
type chatRequest struct {
	provider.ChatRequest
	Usage *usageOptions `json:"usage,omitempty"`
}

type usageOptions struct {
	Include bool `json:"include"`
}
