// Package openai provides an adapter for the OpenAI API using the official
// SDK. The SDK performs its own retry and backoff, so this adapter reports
// built-in rate limiting and the gateway skips external pacing.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider"
	"github.com/davidbz/hearth/internal/streaming"
)

const providerName = "openai"

// Provider implements the domain.Provider interface for OpenAI.
type Provider struct {
	client           openai.Client
	estimator        domain.TokenCounter
	model            domain.ModelDescriptor
	temperature      float64
	includeMaxTokens bool
}

// NewProvider creates an OpenAI provider.
func NewProvider(cfg Config, estimator domain.TokenCounter) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}

	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(cfg.Timeout)*time.Second))
	}

	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	return &Provider{
		client:           openai.NewClient(opts...),
		estimator:        estimator,
		model:            domain.ResolveModel(models, cfg.Model, defaultModelID),
		temperature:      cfg.Temperature,
		includeMaxTokens: cfg.IncludeMaxTokens,
	}, nil
}

// CreateMessage opens a streaming completion through the SDK and
// normalizes its chunks.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	params := p.newParams(toMessages(system, turns))
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	pipe := streaming.NewPipe(ctx, providerName, streaming.DefaultStallTimeout)

	stream := p.client.Chat.Completions.NewStreaming(pipe.Context(), params)
	if err := stream.Err(); err != nil {
		pipe.Close()
		return nil, wrapSDKError(err)
	}

	pipe.Arm()
	go p.consume(ctx, stream, pipe)

	return pipe.Out(), nil
}

// CompletePrompt sends a single non-streaming prompt and returns the
// trimmed response text.
func (p *Provider) CompletePrompt(ctx context.Context, prompt string) (string, error) {
	params := p.newParams([]openai.ChatCompletionMessageParamUnion{
		openai.UserMessage(prompt),
	})

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapSDKError(err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewError(domain.ErrCodeProvider, providerName, "response contained no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Model returns the resolved model descriptor.
func (p *Provider) Model() domain.ModelDescriptor { return p.model }

// CountTokens estimates with the shared estimator; OpenAI exposes no
// counting endpoint.
func (p *Provider) CountTokens(_ context.Context, blocks []domain.ContentBlock) int {
	return p.estimator.Count(blocks)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// SupportedModels returns the sorted built-in model IDs.
func (p *Provider) SupportedModels() []string { return provider.ModelIDs(models) }

// HasBuiltInRateLimit reports that the SDK retries and paces internally.
func (p *Provider) HasBuiltInRateLimit() bool { return true }

// Close is a no-op; the SDK holds no background resources.
func (p *Provider) Close() error { return nil }

func (p *Provider) newParams(messages []openai.ChatCompletionMessageParamUnion) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.model.ID),
		Messages: messages,
	}

	if p.temperature > 0 {
		params.Temperature = openai.Float(p.temperature)
	}

	if p.includeMaxTokens && p.model.Info.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.model.Info.MaxTokens))
	}

	return params
}

func (p *Provider) consume(ctx context.Context, stream *ssestream.Stream[openai.ChatCompletionChunk], pipe *streaming.Pipe) {
	defer stream.Close()
	defer pipe.Close()

	logger := observability.FromContext(ctx)

	var usage domain.Usage
	sawUsage := false

	for stream.Next() {
		chunk := stream.Current()

		// With IncludeUsage the final chunk carries usage and no choices.
		if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
			usage = normalizeUsage(chunk.Usage)
			sawUsage = true
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		if !pipe.EmitText(chunk.Choices[0].Delta.Content) {
			break
		}
	}

	err := stream.Err()
	switch {
	case pipe.Stalled():
		logger.Warn("stream stalled, finalizing with partial results")
		if sawUsage {
			pipe.CloseWithUsage(usage)
		}
	case err == nil:
		if sawUsage {
			pipe.CloseWithUsage(usage)
		}
	case errors.Is(err, context.Canceled):
		// Caller cancelled; nothing left to deliver.
	default:
		pipe.Fail(wrapSDKError(err))
	}
}

func wrapSDKError(err error) error {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return domain.WrapError(domain.ClassifyStatus(apierr.StatusCode), providerName, err)
	}
	return domain.WrapError(domain.ErrCodeUnavailable, providerName, err)
}

func toMessages(system string, turns []domain.Turn) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	for _, turn := range turns {
		switch turn.Role {
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(turn.JoinText()))
		default:
			messages = append(messages, userMessage(turn))
		}
	}
	return messages
}

// userMessage keeps plain-text turns as bare strings and switches to typed
// content parts only when the turn carries an image.
func userMessage(turn domain.Turn) openai.ChatCompletionMessageParamUnion {
	hasImage := false
	for _, block := range turn.Blocks {
		if block.Type == domain.BlockImage && block.Image != nil {
			hasImage = true
			break
		}
	}
	if !hasImage {
		return openai.UserMessage(turn.JoinText())
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(turn.Blocks))
	for _, block := range turn.Blocks {
		switch block.Type {
		case domain.BlockImage:
			if block.Image == nil {
				continue
			}
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: fmt.Sprintf("data:%s;base64,%s", block.Image.MediaType, block.Image.Data),
			}))
		default:
			parts = append(parts, openai.TextContentPart(block.Text))
		}
	}
	return openai.UserMessage(parts)
}

func normalizeUsage(u openai.CompletionUsage) domain.Usage {
	usage := domain.Usage{
		InputTokens:     int(u.PromptTokens),
		OutputTokens:    int(u.CompletionTokens),
		CacheReadTokens: int(u.PromptTokensDetails.CachedTokens),
	}
	if rt := int(u.CompletionTokensDetails.ReasoningTokens); rt > 0 {
		usage.ReasoningTokens = &rt
	}
	return usage
}
