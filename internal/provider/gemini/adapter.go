// Package gemini adapts the Gemini generateContent API. Thinking-capable
// models are exposed under -thinking alias IDs that attach an explicit
// reasoning budget to the request; the wire model is always the base ID.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider"
	"github.com/davidbz/hearth/internal/retry"
	"github.com/davidbz/hearth/internal/streaming"
)

const (
	providerName   = "gemini"
	defaultBaseURL = "https://generativelanguage.googleapis.com"

	// thinkingSuffix marks alias model IDs that request a reasoning budget.
	thinkingSuffix = "-thinking"

	// thinkingBudgetTokens is the budget sent for -thinking aliases.
	thinkingBudgetTokens = 24576
)

// Provider implements the domain.Provider interface for Gemini.
type Provider struct {
	client      *provider.Client
	estimator   domain.TokenCounter
	model       domain.ModelDescriptor
	baseURL     string
	apiKey      string
	temperature float64
	debug       *observability.Batcher
}

// NewProvider creates a Gemini provider.
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
		debug: observability.NewBatcher("gemini stream chunks",
			observability.FromContext(context.Background()).Debug),
	}, nil
}

// CreateMessage opens a streaming generateContent call and normalizes the
// event stream into chunks.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	payload := p.newGenerateRequest(system, toWireContents(turns))

	pipe := streaming.NewPipe(ctx, providerName, streaming.DefaultStallTimeout)

	resp, err := p.client.Stream(pipe.Context(), func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, p.streamURL(), payload)
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
	payload := p.newGenerateRequest("", []wireContent{
		{Role: "user", Parts: []wirePart{{Text: prompt}}},
	})

	body, err := p.client.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, p.generateURL(), payload)
	})
	if err != nil {
		return "", err
	}

	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.WrapError(domain.ErrCodeProvider, providerName,
			fmt.Errorf("failed to decode response: %w", err))
	}
	if len(resp.Candidates) == 0 {
		return "", domain.NewError(domain.ErrCodeProvider, providerName, "response contained no candidates")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
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

// Close flushes buffered debug records and releases idle connections.
func (p *Provider) Close() error {
	p.debug.Close()
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
		var chunk generateResponse
		if err := json.Unmarshal([]byte(ev.Data), &chunk); err != nil {
			logger.Debug("skipping malformed stream event", observability.Error(err))
			return nil
		}

		if chunk.Error != nil {
			return domain.NewError(domain.ErrCodeProvider, providerName, chunk.Error.Message)
		}

		// usageMetadata is cumulative; the last report wins.
		if chunk.UsageMetadata != nil {
			usage = normalizeUsage(*chunk.UsageMetadata)
			sawUsage = true
		}

		if len(chunk.Candidates) == 0 {
			return nil
		}
		for _, part := range chunk.Candidates[0].Content.Parts {
			if part.Text == "" {
				continue
			}
			p.debug.Add(fmt.Sprintf("text=%d thought=%t", len(part.Text), part.Thought))

			emit := pipe.EmitText
			if part.Thought {
				emit = pipe.EmitReasoning
			}
			if !emit(part.Text) {
				return context.Cause(pipe.Context())
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

func (p *Provider) newGenerateRequest(system string, contents []wireContent) generateRequest {
	payload := generateRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     p.temperature,
			MaxOutputTokens: p.model.Info.MaxTokens,
		},
	}

	if system != "" {
		payload.SystemInstruction = &wireContent{Parts: []wirePart{{Text: system}}}
	}

	if strings.HasSuffix(p.model.ID, thinkingSuffix) {
		payload.GenerationConfig.ThinkingConfig = &thinkingConfig{ThinkingBudget: thinkingBudgetTokens}
	}

	return payload
}

func (p *Provider) newRequest(ctx context.Context, rawURL string, payload generateRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// wireModelID strips the -thinking alias; the API knows only base IDs.
func (p *Provider) wireModelID() string {
	return strings.TrimSuffix(p.model.ID, thinkingSuffix)
}

func (p *Provider) streamURL() string {
	return fmt.Sprintf("%s/v1beta/models/%s:streamGenerateContent?alt=sse&key=%s",
		p.baseURL, p.wireModelID(), url.QueryEscape(p.apiKey))
}

func (p *Provider) generateURL() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		p.baseURL, p.wireModelID(), url.QueryEscape(p.apiKey))
}

func toWireContents(turns []domain.Turn) []wireContent {
	contents := make([]wireContent, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Role == domain.RoleAssistant {
			role = "model"
		}
		contents = append(contents, wireContent{Role: role, Parts: toWireParts(turn.Blocks)})
	}
	return contents
}

func toWireParts(blocks []domain.ContentBlock) []wirePart {
	parts := make([]wirePart, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case domain.BlockImage:
			if block.Image == nil {
				continue
			}
			parts = append(parts, wirePart{
				InlineData: &wireInlineData{
					MimeType: block.Image.MediaType,
					Data:     block.Image.Data,
				},
			})
		default:
			parts = append(parts, wirePart{Text: block.Text})
		}
	}
	return parts
}

func normalizeUsage(u wireUsage) domain.Usage {
	usage := domain.Usage{
		InputTokens:     u.PromptTokenCount,
		OutputTokens:    u.CandidatesTokenCount,
		CacheReadTokens: u.CachedContentTokenCount,
	}
	if u.ThoughtsTokenCount > 0 {
		rt := u.ThoughtsTokenCount
		usage.ReasoningTokens = &rt
	}
	return usage
}

type generateRequest struct {
	Contents          []wireContent    `json:"contents"`
	SystemInstruction *wireContent     `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64         `json:"temperature"`
	MaxOutputTokens int             `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string          `json:"text,omitempty"`
	Thought    bool            `json:"thought,omitempty"`
	InlineData *wireInlineData `json:"inlineData,omitempty"`
}

type wireInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []struct {
		Content      wireContent `json:"content"`
		FinishReason string      `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *wireUsage `json:"usageMetadata"`
	Error         *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

type wireUsage struct {
	PromptTokenCount        int `json:"promptTokenCount"`
	CandidatesTokenCount    int `json:"candidatesTokenCount"`
	CachedContentTokenCount int `json:"cachedContentTokenCount"`
	ThoughtsTokenCount      int `json:"thoughtsTokenCount"`
}
