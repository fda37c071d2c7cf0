package openrouter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider/openrouter"
	"github.com/davidbz/hearth/internal/tokenizer"
)

const modelListJSON = `{"data":[
  {"id":"anthropic/claude-sonnet-4.5","name":"Anthropic: Claude Sonnet 4.5","context_length":200000,
   "architecture":{"input_modalities":["text","image"]},
   "top_provider":{"max_completion_tokens":64000},
   "pricing":{"prompt":"0.000003","completion":"0.000015","input_cache_read":"0.0000003","input_cache_write":"0.00000375"}},
  {"id":"deepseek/deepseek-chat","name":"DeepSeek: DeepSeek V3","context_length":163840,
   "architecture":{"input_modalities":["text"]},
   "pricing":{"prompt":"0.0000002","completion":"0.0000008"}}
]}`

// newTestServer answers the model list fetch and hands chat completions to
// the given handler. An empty models payload turns the fetch away with 401
// so construction degrades without retry delays.
func newTestServer(models string, chat http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/models":
			if models == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Write([]byte(models))
		case "/api/v1/chat/completions":
			chat(w, r)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestProvider(t *testing.T, baseURL string) *openrouter.Provider {
	t.Helper()

	p, err := openrouter.NewProvider(context.Background(), openrouter.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5,
		Referer: "https://example.test",
		Title:   "Hearth Tests",
	}, tokenizer.NewEstimator())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p
}

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

func writeData(w http.ResponseWriter, data string) {
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	p, err := openrouter.NewProvider(context.Background(), openrouter.Config{}, tokenizer.NewEstimator())

	require.Error(t, err)
	require.Nil(t, p)
	require.True(t, domain.IsCode(err, domain.ErrCodeConfig))
}

func TestNewProvider_FetchesModelList(t *testing.T) {
	server := newTestServer(modelListJSON, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	ids := p.SupportedModels()
	require.Contains(t, ids, "anthropic/claude-sonnet-4.5")
	require.Contains(t, ids, "deepseek/deepseek-chat")
	require.IsIncreasing(t, ids)

	model := p.Model()
	require.Equal(t, "anthropic/claude-sonnet-4.5", model.ID)
	require.Equal(t, 64000, model.Info.MaxTokens)
	require.Equal(t, 200000, model.Info.ContextWindow)
	require.True(t, model.Info.SupportsImages)
	require.True(t, model.Info.SupportsPromptCache)
	require.InDelta(t, 0.003, model.Info.InputPrice, 1e-9)
	require.InDelta(t, 0.015, model.Info.OutputPrice, 1e-9)
	require.InDelta(t, 0.0003, model.Info.CacheReadsPrice, 1e-9)
	require.InDelta(t, 0.00375, model.Info.CacheWritesPrice, 1e-9)
}

func TestNewProvider_DegradesWhenModelListUnavailable(t *testing.T) {
	server := newTestServer("", nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	require.Equal(t, []string{"anthropic/claude-sonnet-4.5"}, p.SupportedModels())
	require.Equal(t, "anthropic/claude-sonnet-4.5", p.Model().ID)
	require.Positive(t, p.Model().Info.ContextWindow)
}

func TestProvider_CreateMessage_NormalizesStream(t *testing.T) {
	var header, body atomic.Value
	server := newTestServer(modelListJSON, func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Clone())
		raw, _ := io.ReadAll(r.Body)
		body.Store(raw)
		w.Header().Set("Content-Type", "text/event-stream")
		writeData(w, `{"choices":[{"delta":{"reasoning":"mull it over"}}]}`)
		writeData(w, `{"choices":[{"delta":{"content":"Hel"}}]}`)
		writeData(w, `{"choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`)
		writeData(w, `{"choices":[],"usage":{"prompt_tokens":7,"completion_tokens":2,"cost":0.00042,"prompt_tokens_details":{"cached_tokens":3}}}`)
		writeData(w, "[DONE]")
	})
	defer server.Close()

	p := newTestProvider(t, server.URL)

	out, err := p.CreateMessage(context.Background(), "be brief",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hi")})
	require.NoError(t, err)

	chunks := drainChunks(t, out)

	require.Len(t, chunks, 4)
	require.Equal(t, domain.ChunkReasoning, chunks[0].Type)
	require.Equal(t, "mull it over", chunks[0].Text)
	require.Equal(t, "Hel", chunks[1].Text)
	require.Equal(t, "lo", chunks[2].Text)

	last := chunks[3]
	require.Equal(t, domain.ChunkUsage, last.Type)
	require.Equal(t, 7, last.Usage.InputTokens)
	require.Equal(t, 2, last.Usage.OutputTokens)
	require.Equal(t, 3, last.Usage.CacheReadTokens)
	require.NotNil(t, last.Usage.TotalCost)
	require.InDelta(t, 0.00042, *last.Usage.TotalCost, 1e-9)

	got := header.Load().(http.Header)
	require.Equal(t, "Bearer test-key", got.Get("Authorization"))
	require.Equal(t, "https://example.test", got.Get("HTTP-Referer"))
	require.Equal(t, "Hearth Tests", got.Get("X-Title"))

	var req struct {
		Model  string `json:"model"`
		Stream bool   `json:"stream"`
		Usage  *struct {
			Include bool `json:"include"`
		} `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(body.Load().([]byte), &req))
	require.Equal(t, "anthropic/claude-sonnet-4.5", req.Model)
	require.True(t, req.Stream)
	require.NotNil(t, req.Usage)
	require.True(t, req.Usage.Include)
}

func TestProvider_CompletePrompt(t *testing.T) {
	server := newTestServer(modelListJSON, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  pong  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	})
	defer server.Close()

	p := newTestProvider(t, server.URL)

	text, err := p.CompletePrompt(context.Background(), "ping")

	require.NoError(t, err)
	require.Equal(t, "pong", text)
}

func TestProvider_CountTokens_UsesEstimator(t *testing.T) {
	server := newTestServer(modelListJSON, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	blocks := []domain.ContentBlock{domain.TextBlock("hello world")}

	require.Equal(t, tokenizer.NewEstimator().Count(blocks), p.CountTokens(context.Background(), blocks))
	require.Zero(t, p.CountTokens(context.Background(), nil))
}

func TestProvider_HasBuiltInRateLimit(t *testing.T) {
	server := newTestServer(modelListJSON, nil)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	require.False(t, p.HasBuiltInRateLimit())
	require.Equal(t, "openrouter", p.Name())
}
