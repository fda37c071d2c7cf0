// Package compat adapts any OpenAI-compatible endpoint the user brings,
// such as vLLM, LM Studio, or a hosted gateway. Unlike the built-in
// vendors there are no defaults: endpoint, credentials, and model metadata
// all come from configuration, and construction fails when any is missing.
package compat

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
	providerName = "compat"

	chatCompletionsPath = "/v1/chat/completions"
)

// Provider implements the domain.Provider interface for user-supplied
// OpenAI-compatible endpoints.
type Provider struct {
	client      *provider.Client
	estimator   domain.TokenCounter
	model       domain.ModelDescriptor
	models      map[string]domain.ModelInfo
	baseURL     string
	apiKey      string
	temperature float64
	stop        []string
}

// NewProvider creates a provider for the configured endpoint. It fails
// with a config-coded error when the base URL, API key, model file, or
// configured model is missing.
func NewProvider(cfg Config, estimator domain.TokenCounter) (*Provider, error) {
	if cfg.BaseURL == "" {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "API key is required")
	}

	models, err := LoadModels(cfg.ModelFile)
	if err != nil {
		return nil, err
	}

	model, err := resolveModel(models, cfg.Model)
	if err != nil {
		return nil, err
	}

	return &Provider{
		client:      provider.NewClient(providerName, time.Duration(cfg.Timeout)*time.Second, retry.DefaultPolicy()),
		estimator:   estimator,
		model:       model,
		models:      models,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		stop:        provider.ParseStopTokens(cfg.StopTokens),
	}, nil
}

// CreateMessage opens a streaming completion and normalizes the event
// stream into chunks.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	payload := provider.ChatRequest{
		Model:         p.model.ID,
		Messages:      provider.ChatMessages(system, turns),
		MaxTokens:     p.model.Info.MaxTokens,
		Temperature:   p.temperature,
		Stream:        true,
		Stop:          p.stop,
		StreamOptions: &provider.ChatStreamOptions{IncludeUsage: true},
	}

	pipe := streaming.NewPipe(ctx, providerName, streaming.DefaultStallTimeout)

	resp, err := p.client.Stream(pipe.Context(), func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, payload)
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
	payload := provider.ChatRequest{
		Model:       p.model.ID,
		Messages:    []provider.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   p.model.Info.MaxTokens,
		Temperature: p.temperature,
		Stop:        p.stop,
	}

	body, err := p.client.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, payload)
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

// Model returns the configured model descriptor.
func (p *Provider) Model() domain.ModelDescriptor { return p.model }

// CountTokens estimates with the shared estimator.
func (p *Provider) CountTokens(_ context.Context, blocks []domain.ContentBlock) int {
	return p.estimator.Count(blocks)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// SupportedModels returns the sorted model IDs from the model file.
func (p *Provider) SupportedModels() []string { return provider.ModelIDs(p.models) }

// HasBuiltInRateLimit reports that pacing is the caller's job.
func (p *Provider) HasBuiltInRateLimit() bool { return false }

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.Close()
	return nil
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

func (p *Provider) newRequest(ctx context.Context, payload provider.ChatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	return req, nil
}
