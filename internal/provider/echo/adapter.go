// Package echo provides a provider that echoes its input back without any
// external calls. It exists for tests and local development: deterministic
// output, zero cost, no credentials.
package echo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/streaming"
)

const (
	providerName = "echo"
	modelName    = "echo4"

	// chunkDelay spaces the echoed words out so streaming consumers see
	// more than one delta.
	chunkDelay = 10 * time.Millisecond
)

var echoModelInfo = domain.ModelInfo{
	MaxTokens:     4096,
	ContextWindow: 8192,
	Description:   "In-memory echo model for tests and development",
}

// Provider implements the domain.Provider interface by echoing input.
type Provider struct {
	estimator domain.TokenCounter
}

// NewProvider creates an echo provider. No configuration is required.
func NewProvider(estimator domain.TokenCounter) *Provider {
	return &Provider{estimator: estimator}
}

// CreateMessage streams the conversation back word by word, then a usage
// chunk counted by the shared estimator.
func (p *Provider) CreateMessage(ctx context.Context, system string, turns []domain.Turn) (<-chan domain.StreamChunk, error) {
	text := echoText(system, turns)

	pipe := streaming.NewPipe(ctx, providerName, streaming.DefaultStallTimeout)
	pipe.Arm()

	go p.stream(text, turns, pipe)

	return pipe.Out(), nil
}

func (p *Provider) stream(text string, turns []domain.Turn, pipe *streaming.Pipe) {
	defer pipe.Close()

	words := strings.Fields(text)
	for i, word := range words {
		if i < len(words)-1 {
			word += " "
		}
		if !pipe.EmitText(word) {
			return
		}
		time.Sleep(chunkDelay)
	}

	input := 0
	for _, turn := range turns {
		input += p.estimator.Count(turn.Blocks)
	}
	pipe.CloseWithUsage(domain.Usage{
		InputTokens:  input,
		OutputTokens: p.estimator.Count([]domain.ContentBlock{domain.TextBlock(text)}),
	})
}

// CompletePrompt echoes the prompt back with its role prefix.
func (p *Provider) CompletePrompt(_ context.Context, prompt string) (string, error) {
	return strings.TrimSpace(echoText("", []domain.Turn{domain.TextTurn(domain.RoleUser, prompt)})), nil
}

// Model returns the echo model descriptor.
func (p *Provider) Model() domain.ModelDescriptor {
	return domain.ModelDescriptor{ID: modelName, Info: echoModelInfo}
}

// CountTokens estimates with the shared estimator.
func (p *Provider) CountTokens(_ context.Context, blocks []domain.ContentBlock) int {
	return p.estimator.Count(blocks)
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return providerName }

// SupportedModels returns the single echo model.
func (p *Provider) SupportedModels() []string { return []string{modelName} }

// HasBuiltInRateLimit reports true: an in-memory vendor needs no pacing.
func (p *Provider) HasBuiltInRateLimit() bool { return true }

// Close is a no-op; the provider holds no connections.
func (p *Provider) Close() error { return nil }

// echoText renders the conversation as role-prefixed lines.
func echoText(system string, turns []domain.Turn) string {
	var b strings.Builder
	if system != "" {
		fmt.Fprintf(&b, "[system]: %s\n", system)
	}
	for _, turn := range turns {
		fmt.Fprintf(&b, "[%s]: %s\n", turn.Role, turn.JoinText())
	}
	return b.String()
}
