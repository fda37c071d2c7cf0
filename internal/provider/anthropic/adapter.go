// Package anthropic adapts the Anthropic Messages API. The API streams
// server-sent events over raw HTTP; this adapter normalizes them into the
// shared chunk vocabulary and prefers the native count_tokens endpoint,
// falling back to the shared estimator.
package anthropic

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
	providerName   = "anthropic"
	apiVersion     = "2023-06-01"
	defaultBaseURL = "https://api.anthropic.com"

	messagesPath    = "/v1/messages"
	countTokensPath = "/v1/messages/count_tokens"
)

// Provider implements the domain.Provider interface for Anthropic.
type Provider struct {
	client      *provider.Client
	estimator   domain.TokenCounter
	model       domain.ModelDescriptor
	baseURL     string
	apiKey      string
	temperature float64
}

// NewProvider creates an Anthropic provider.
func NewProvider(cfg Config, estimator domain.TokenCounter) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "API key is required")
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Provider{
		client:      provider.NewClient(providerName, time.Duration(cfg.Timeout)*time.Second, retry.DefaultPolicy()),
		estimator:   estimator,
		model:       domain.ResolveModel(models, cfg.Model, defaultModelID),
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
	}, nil
}

// CreateMessage opens a streaming completion and normalizes the event
// stream into chunks.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	payload := messageRequest{
		Model:       p.model.ID,
		MaxTokens:   p.model.Info.MaxTokens,
		System:      system,
		Messages:    toWireMessages(turns),
		Temperature: p.temperature,
		Stream:      true,
	}

	pipe := streaming.NewPipe(ctx, providerName, streaming.DefaultStallTimeout)

	resp, err := p.client.Stream(pipe.Context(), func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, messagesPath, payload)
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
	payload := messageRequest{
		Model:       p.model.ID,
		MaxTokens:   p.model.Info.MaxTokens,
		Messages:    []wireMessage{{Role: "user", Content: []wireBlock{{Type: "text", Text: prompt}}}},
		Temperature: p.temperature,
	}

	body, err := p.client.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, messagesPath, payload)
	})
	if err != nil {
		return "", err
	}

	var resp messageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.WrapError(domain.ErrCodeProvider, providerName,
			fmt.Errorf("failed to decode response: %w", err))
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Model returns the resolved model descriptor.
func (p *Provider) Model() domain.ModelDescriptor { return p.model }

// CountTokens counts via the native count_tokens endpoint, falling back to
// the shared estimator on any failure.
func (p *Provider) CountTokens(ctx context.Context, blocks []domain.ContentBlock) int {
	if len(blocks) == 0 {
		return 0
	}

	payload := countTokensRequest{
		Model:    p.model.ID,
		Messages: []wireMessage{{Role: "user", Content: toWireBlocks(blocks)}},
	}

	body, err := p.client.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, countTokensPath, payload)
	})
	if err != nil {
		observability.FromContext(ctx).Warn("native token count failed, using estimator",
			observability.Error(err))
		return p.estimator.Count(blocks)
	}

	var resp countTokensResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.InputTokens < 0 {
		return p.estimator.Count(blocks)
	}
	return resp.InputTokens
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

func (p *Provider) consume(ctx context.Context, resp *http.Response, pipe *streaming.Pipe) {
	defer resp.Body.Close()
	defer pipe.Close()

	logger := observability.FromContext(ctx)

	var usage domain.Usage
	sawUsage := false

	err := provider.ScanSSE(resp.Body, func(ev provider.Event) error {
		var event streamEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			logger.Debug("skipping malformed stream event", observability.Error(err))
			return nil
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				usage.InputTokens = event.Message.Usage.InputTokens
				usage.CacheWriteTokens = event.Message.Usage.CacheCreationInputTokens
				usage.CacheReadTokens = event.Message.Usage.CacheReadInputTokens
				sawUsage = true
			}
		case "content_block_delta":
			if event.Delta == nil {
				return nil
			}
			switch event.Delta.Type {
			case "text_delta":
				if !pipe.EmitText(event.Delta.Text) {
					return context.Cause(pipe.Context())
				}
			case "thinking_delta":
				if !pipe.EmitReasoning(event.Delta.Thinking) {
					return context.Cause(pipe.Context())
				}
			}
		case "message_delta":
			if event.Usage != nil {
				usage.OutputTokens = event.Usage.OutputTokens
				sawUsage = true
			}
		case "error":
			if event.Error != nil {
				return domain.NewError(domain.ErrCodeProvider, providerName, event.Error.Message)
			}
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

func (p *Provider) newRequest(ctx context.Context, path string, payload interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	return req, nil
}

func toWireMessages(turns []domain.Turn) []wireMessage {
	messages := make([]wireMessage, 0, len(turns))
	for _, turn := range turns {
		messages = append(messages, wireMessage{
			Role:    string(turn.Role),
			Content: toWireBlocks(turn.Blocks),
		})
	}
	return messages
}

func toWireBlocks(blocks []domain.ContentBlock) []wireBlock {
	wire := make([]wireBlock, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case domain.BlockImage:
			if block.Image == nil {
				continue
			}
			wire = append(wire, wireBlock{
				Type: "image",
				Source: &wireSource{
					Type:      "base64",
					MediaType: block.Image.MediaType,
					Data:      block.Image.Data,
				},
			})
		default:
			wire = append(wire, wireBlock{Type: "text", Text: block.Text})
		}
	}
	return wire
}

type messageRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream,omitempty"`
}

type countTokensRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
}

type wireMessage struct {
	Role    string      `json:"role"`
	Content []wireBlock `json:"content"`
}

type wireBlock struct {
	Type   string      `json:"type"`
	Text   string      `json:"text,omitempty"`
	Source *wireSource `json:"source,omitempty"`
}

type wireSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type wireUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type messageResponse struct {
	Content []wireBlock `json:"content"`
	Usage   wireUsage   `json:"usage"`
}

type countTokensResponse struct {
	InputTokens int `json:"input_tokens"`
}

type streamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage wireUsage `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"delta"`
	Usage *wireUsage `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
