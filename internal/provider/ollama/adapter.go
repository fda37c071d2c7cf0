// Package ollama adapts a local Ollama daemon. The wire format is
// newline-delimited JSON rather than SSE, and instead of credential checks
// the adapter runs a background availability probe against /api/tags so
// requests fail fast while the daemon is down.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider"
	"github.com/davidbz/hearth/internal/retry"
	"github.com/davidbz/hearth/internal/streaming"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"

	chatPath = "/api/chat"
	tagsPath = "/api/tags"

	defaultPollInterval = 30 * time.Second

	// probeTimeout bounds one availability ping. The daemon is local, so a
	// slow answer means down.
	probeTimeout = 5 * time.Second
)

// Provider implements the domain.Provider interface for Ollama.
type Provider struct {
	client      *provider.Client
	probe       *provider.Client
	estimator   domain.TokenCounter
	model       domain.ModelDescriptor
	baseURL     string
	temperature float64
	stop        []string

	available   atomic.Bool
	mu          sync.RWMutex
	localModels []string

	pollCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewProvider creates an Ollama provider and starts its availability
// poller. Construction never fails: a daemon that is down at startup is an
// availability state, not a configuration error.
func NewProvider(cfg Config, estimator domain.TokenCounter) (*Provider, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = defaultModelID
	}

	interval := time.Duration(cfg.PollSeconds) * time.Second
	if interval <= 0 {
		interval = defaultPollInterval
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	p := &Provider{
		client:      provider.NewClient(providerName, time.Duration(cfg.Timeout)*time.Second, retry.DefaultPolicy()),
		probe:       provider.NewClient(providerName, probeTimeout, retry.Policy{MaxAttempts: 1}),
		estimator:   estimator,
		model:       domain.ModelDescriptor{ID: modelID, Info: localModelInfo},
		baseURL:     baseURL,
		temperature: cfg.Temperature,
		stop:        provider.ParseStopTokens(cfg.StopTokens),
		pollCancel:  cancel,
	}

	p.checkAvailability(pollCtx)

	p.wg.Add(1)
	go p.poll(pollCtx, interval)

	return p, nil
}

// CreateMessage opens a streaming chat call and normalizes the line stream
// into chunks. It fails fast while the daemon is unreachable.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	if !p.available.Load() {
		return nil, domain.NewError(domain.ErrCodeUnavailable, providerName,
			"daemon is not reachable, check that ollama is running")
	}

	payload := chatRequest{
		Model:    p.model.ID,
		Messages: toWireMessages(system, turns),
		Stream:   true,
		Options:  p.wireOptions(),
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
	if !p.available.Load() {
		return "", domain.NewError(domain.ErrCodeUnavailable, providerName,
			"daemon is not reachable, check that ollama is running")
	}

	payload := chatRequest{
		Model:    p.model.ID,
		Messages: []wireMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Options:  p.wireOptions(),
	}

	body, err := p.client.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		return p.newRequest(ctx, payload)
	})
	if err != nil {
		return "", err
	}

	var resp chatLine
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", domain.WrapError(domain.ErrCodeProvider, providerName,
			fmt.Errorf("failed to decode response: %w", err))
	}
	if resp.Error != "" {
		return "", domain.NewError(domain.ErrCodeProvider, providerName, resp.Error)
	}
	if resp.Message == nil {
		return "", domain.NewError(domain.ErrCodeProvider, providerName, "response contained no message")
	}
	return strings.TrimSpace(resp.Message.Content), nil
}

// Model returns the configured local model descriptor.
func (p *Provider) Model() domain.ModelDescriptor { return p.model }

// CountTokens estimates with the shared estimator.
func (p *Provider) CountTokens(_ context.Context, blocks []domain.ContentBlock) int {
	return p.estimator.Count(blocks)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// SupportedModels returns the tags reported by the daemon on the last
// successful probe, sorted. Empty while the daemon has not answered yet.
func (p *Provider) SupportedModels() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.localModels
}

// HasBuiltInRateLimit reports that pacing is the caller's job.
func (p *Provider) HasBuiltInRateLimit() bool { return false }

// Close stops the availability poller and releases idle connections.
func (p *Provider) Close() error {
	p.pollCancel()
	p.wg.Wait()
	p.probe.Close()
	p.client.Close()
	return nil
}

func (p *Provider) poll(ctx context.Context, interval time.Duration) {
	defer p.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.checkAvailability(ctx)
		}
	}
}

// checkAvailability pings /api/tags, flips the availability flag, and
// refreshes the local model list. Transitions are logged once, not on
// every tick.
func (p *Provider) checkAvailability(ctx context.Context) {
	body, err := p.probe.Request(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+tagsPath, nil)
	})
	if err != nil {
		if p.available.Swap(false) {
			observability.FromContext(ctx).Warn("ollama became unreachable",
				observability.Error(err))
		}
		return
	}

	var tags tagsResponse
	var names []string
	if err := json.Unmarshal(body, &tags); err == nil {
		for _, model := range tags.Models {
			names = append(names, model.Name)
		}
		sort.Strings(names)
	}

	p.mu.Lock()
	p.localModels = names
	p.mu.Unlock()

	if !p.available.Swap(true) {
		observability.FromContext(ctx).Info("ollama is reachable",
			observability.Int("local_models", len(names)))
	}
}

func (p *Provider) consume(ctx context.Context, resp *http.Response, pipe *streaming.Pipe) {
	defer resp.Body.Close()
	defer pipe.Close()

	logger := observability.FromContext(ctx)

	var usage domain.Usage
	sawUsage := false

	err := provider.ScanLines(resp.Body, func(line string) error {
		var chunk chatLine
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			logger.Debug("skipping malformed stream line", observability.Error(err))
			return nil
		}

		if chunk.Error != "" {
			return domain.NewError(domain.ErrCodeProvider, providerName, chunk.Error)
		}

		if chunk.Message != nil && !pipe.EmitText(chunk.Message.Content) {
			return context.Cause(pipe.Context())
		}

		if chunk.Done {
			usage = domain.Usage{
				InputTokens:  chunk.PromptEvalCount,
				OutputTokens: chunk.EvalCount,
			}
			sawUsage = true
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

func (p *Provider) newRequest(ctx context.Context, payload chatRequest) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+chatPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (p *Provider) wireOptions() *wireOptions {
	if p.temperature == 0 && len(p.stop) == 0 {
		return nil
	}
	return &wireOptions{Temperature: p.temperature, Stop: p.stop}
}

// toWireMessages flattens turns to plain strings; ollama carries images as
// a sibling list of base64 payloads rather than content parts.
func toWireMessages(system string, turns []domain.Turn) []wireMessage {
	messages := make([]wireMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, wireMessage{Role: "system", Content: system})
	}
	for _, turn := range turns {
		msg := wireMessage{Role: string(turn.Role), Content: turn.JoinText()}
		for _, block := range turn.Blocks {
			if block.Type == domain.BlockImage && block.Image != nil {
				msg.Images = append(msg.Images, block.Image.Data)
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *wireOptions  `json:"options,omitempty"`
}

type wireMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type wireOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// chatLine is one NDJSON record; the done record carries the token counts.
type chatLine struct {
	Message *struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}
