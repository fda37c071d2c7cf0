// Package mistral adapts the Mistral chat completions API. Codestral
// models are served from a dedicated host, so the endpoint is picked per
// model; document-only models reject chat calls before any I/O happens.
package mistral

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
	providerName     = "mistral"
	defaultBaseURL   = "https://api.mistral.ai"
	codestralBaseURL = "https://codestral.mistral.ai"

	chatCompletionsPath = "/v1/chat/completions"
)

// EndpointForModel returns the API host serving a model. Codestral models
// are only available on their dedicated endpoint.
func EndpointForModel(modelID string) string {
	if strings.HasPrefix(modelID, "codestral-") {
		return codestralBaseURL
	}
	return defaultBaseURL
}

// Provider implements the domain.Provider interface for Mistral.
type Provider struct {
	client      *provider.Client
	estimator   domain.TokenCounter
	model       domain.ModelDescriptor
	baseURL     string
	apiKey      string
	temperature float64
}

// NewProvider creates a Mistral provider.
func NewProvider(cfg Config, estimator domain.TokenCounter) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "API key is required")
	}

	model := domain.ResolveModel(models, cfg.Model, defaultModelID)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = EndpointForModel(model.ID)
	}

	return &Provider{
		client:      provider.NewClient(providerName, time.Duration(cfg.Timeout)*time.Second, retry.DefaultPolicy()),
		estimator:   estimator,
		model:       model,
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
	}, nil
}

// CreateMessage opens a streaming completion and normalizes the event
// stream into chunks.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	if err := p.chatCapable(); err != nil {
		return nil, err
	}

	payload := provider.ChatRequest{
		Model:       p.model.ID,
		Messages:    provider.ChatMessages(system, turns),
		MaxTokens:   p.model.Info.MaxTokens,
		Temperature: p.temperature,
		Stream:      true,
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
	if err := p.chatCapable(); err != nil {
		return "", err
	}

	payload := provider.ChatRequest{
		Model:       p.model.ID,
		Messages:    []provider.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:   p.model.Info.MaxTokens,
		Temperature: p.temperature,
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

// Model returns the resolved model descriptor.
func (p *Provider) Model() domain.ModelDescriptor { return p.model }

// CountTokens estimates with the shared estimator.
func (p *Provider) CountTokens(_ context.Context, blocks []domain.ContentBlock) int {
	return p.estimator.Count(blocks)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// SupportedModels returns the sorted built-in model IDs.
func (p *Provider) SupportedModels() []string { return provider.ModelIDs(models) }

// HasBuiltInRateLimit reports that pacing is the caller's job.
func (p *Provider) HasBuiltInRateLimit() bool { return false }

// Close releases idle connections.
func (p *Provider) Close() error {
	p.client.Close()
	return nil
}

// chatCapable rejects document-only models before any request is made, so
// the caller can tell a misconfigured model from a transport failure.
func (p *Provider) chatCapable() error {
	if p.model.Info.DocumentProcessing != nil && p.model.Info.MaxTokens == 0 {
		return domain.Errorf(domain.ErrCodeValidation, providerName,
			"model %s only supports document processing", p.model.ID)
	}
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
		if !pipe.EmitText(chunk.Choices[0].Delta.Content) {
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
