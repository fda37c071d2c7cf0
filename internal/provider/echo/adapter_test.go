package echo_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider/echo"
	"github.com/davidbz/hearth/internal/streaming"
	"github.com/davidbz/hearth/internal/tokenizer"
)

func drainChunks(t *testing.T, out <-chan domain.StreamChunk) []domain.StreamChunk {
	t.Helper()

	var chunks []domain.StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-out:
			if !ok {
				return chunks
			}
			chunks = append(chunks, chunk)
		case <-timeout:
			t.Fatal("stream did not close in time")
		}
	}
}

func TestProvider_CreateMessage_EchoesConversation(t *testing.T) {
	p := echo.NewProvider(tokenizer.NewEstimator())

	out, err := p.CreateMessage(context.Background(), "be brief",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hello world")})
	require.NoError(t, err)

	chunks := drainChunks(t, out)
	require.GreaterOrEqual(t, len(chunks), 2)

	var text strings.Builder
	for _, chunk := range chunks[:len(chunks)-1] {
		require.Equal(t, domain.ChunkText, chunk.Type)
		text.WriteString(chunk.Text)
	}
	require.Equal(t, "[system]: be brief [user]: hello world", text.String())

	last := chunks[len(chunks)-1]
	require.Equal(t, domain.ChunkUsage, last.Type)
	require.Positive(t, last.Usage.InputTokens)
	require.Positive(t, last.Usage.OutputTokens)
}

func TestProvider_CreateMessage_EmptyConversation(t *testing.T) {
	p := echo.NewProvider(tokenizer.NewEstimator())

	out, err := p.CreateMessage(context.Background(), "", nil)
	require.NoError(t, err)

	chunks := drainChunks(t, out)

	require.Len(t, chunks, 2)
	require.Equal(t, domain.ChunkText, chunks[0].Type)
	require.Equal(t, streaming.NoResponsePlaceholder, chunks[0].Text)
	require.Equal(t, domain.ChunkUsage, chunks[1].Type)
	require.Zero(t, chunks[1].Usage.OutputTokens)
}

func TestProvider_CreateMessage_StopsOnCancel(t *testing.T) {
	p := echo.NewProvider(tokenizer.NewEstimator())

	ctx, cancel := context.WithCancel(context.Background())
	out, err := p.CreateMessage(ctx, "",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, strings.Repeat("word ", 200))})
	require.NoError(t, err)

	<-out
	cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream did not close after cancel")
		}
	}
}

func TestProvider_CompletePrompt(t *testing.T) {
	p := echo.NewProvider(tokenizer.NewEstimator())

	text, err := p.CompletePrompt(context.Background(), "ping")

	require.NoError(t, err)
	require.Equal(t, "[user]: ping", text)
}

func TestProvider_Identity(t *testing.T) {
	p := echo.NewProvider(tokenizer.NewEstimator())

	require.Equal(t, "echo", p.Name())
	require.Equal(t, "echo4", p.Model().ID)
	require.Zero(t, p.Model().Info.InputPrice)
	require.True(t, p.HasBuiltInRateLimit())
	require.Equal(t, []string{"echo4"}, p.SupportedModels())
	require.NoError(t, p.Close())
}

func TestProvider_CountTokens_UsesEstimator(t *testing.T) {
	p := echo.NewProvider(tokenizer.NewEstimator())

	blocks := []domain.ContentBlock{domain.TextBlock("hello world")}

	require.Equal(t, tokenizer.NewEstimator().Count(blocks), p.CountTokens(context.Background(), blocks))
	require.Zero(t, p.CountTokens(context.Background(), nil))
}
