package gemini_test

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
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider/gemini"
	"github.com/davidbz/hearth/internal/tokenizer"
)

func newTestProvider(t *testing.T, baseURL, model string) *gemini.Provider {
	t.Helper()

	p, err := gemini.NewProvider(gemini.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   model,
		Timeout: 5,
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
	p, err := gemini.NewProvider(gemini.Config{}, tokenizer.NewEstimator())

	require.Error(t, err)
	require.Nil(t, p)
	require.True(t, domain.IsCode(err, domain.ErrCodeConfig))
}

func TestNewProvider_UnknownModelFallsBackToDefault(t *testing.T) {
	p := newTestProvider(t, "", "gemini-imaginary")

	require.Equal(t, "gemini-2.5-flash", p.Model().ID)
	require.Positive(t, p.Model().Info.ContextWindow)
}

func TestProvider_CreateMessage_NormalizesStream(t *testing.T) {
	var reqURL atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqURL.Store(r.URL.String())
		w.Header().Set("Content-Type", "text/event-stream")
		writeData(w, `{"candidates":[{"content":{"parts":[{"text":"let me think","thought":true},{"text":"Hel"}],"role":"model"}}]}`)
		writeData(w, `{"candidates":[{"content":{"parts":[{"text":"lo"}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"cachedContentTokenCount":2,"thoughtsTokenCount":3}}`)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "")

	out, err := p.CreateMessage(context.Background(), "be brief",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hi")})
	require.NoError(t, err)

	chunks := drainChunks(t, out)

	require.Len(t, chunks, 4)
	require.Equal(t, domain.ChunkReasoning, chunks[0].Type)
	require.Equal(t, "let me think", chunks[0].Text)
	require.Equal(t, "Hel", chunks[1].Text)
	require.Equal(t, "lo", chunks[2].Text)

	last := chunks[3]
	require.Equal(t, domain.ChunkUsage, last.Type)
	require.Equal(t, 10, last.Usage.InputTokens)
	require.Equal(t, 5, last.Usage.OutputTokens)
	require.Equal(t, 2, last.Usage.CacheReadTokens)
	require.NotNil(t, last.Usage.ReasoningTokens)
	require.Equal(t, 3, *last.Usage.ReasoningTokens)
	require.Nil(t, last.Usage.TotalCost)

	require.Equal(t,
		"/v1beta/models/gemini-2.5-flash:streamGenerateContent?alt=sse&key=test-key",
		reqURL.Load())
}

func TestProvider_CreateMessage_ThinkingAliasSetsBudget(t *testing.T) {
	var path, body atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		body.Store(raw)
		w.Header().Set("Content-Type", "text/event-stream")
		writeData(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "gemini-2.5-flash-thinking")
	require.True(t, p.Model().Info.SupportsReasoningBudget)

	out, err := p.CreateMessage(context.Background(), "",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hi")})
	require.NoError(t, err)
	drainChunks(t, out)

	// The alias never reaches the wire.
	require.Equal(t, "/v1beta/models/gemini-2.5-flash:streamGenerateContent", path.Load())

	var req struct {
		GenerationConfig struct {
			ThinkingConfig *struct {
				ThinkingBudget int `json:"thinkingBudget"`
			} `json:"thinkingConfig"`
		} `json:"generationConfig"`
	}
	require.NoError(t, json.Unmarshal(body.Load().([]byte), &req))
	require.NotNil(t, req.GenerationConfig.ThinkingConfig)
	require.Equal(t, 24576, req.GenerationConfig.ThinkingConfig.ThinkingBudget)
}

func TestProvider_CreateMessage_SendsWireRequest(t *testing.T) {
	var body atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body.Store(raw)
		w.Header().Set("Content-Type", "text/event-stream")
		writeData(w, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "")

	out, err := p.CreateMessage(context.Background(), "system prompt", []domain.Turn{
		{Role: domain.RoleUser, Blocks: []domain.ContentBlock{
			domain.TextBlock("look at this"),
			domain.ImageBlock("image/png", "aGVsbG8="),
		}},
		domain.TextTurn(domain.RoleAssistant, "looking"),
	})
	require.NoError(t, err)
	drainChunks(t, out)

	var req struct {
		Contents []struct {
			Role  string `json:"role"`
			Parts []struct {
				Text       string `json:"text"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"contents"`
		SystemInstruction *struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"systemInstruction"`
		GenerationConfig map[string]json.RawMessage `json:"generationConfig"`
	}
	require.NoError(t, json.Unmarshal(body.Load().([]byte), &req))

	require.NotNil(t, req.SystemInstruction)
	require.Equal(t, "system prompt", req.SystemInstruction.Parts[0].Text)

	require.Len(t, req.Contents, 2)
	require.Equal(t, "user", req.Contents[0].Role)
	require.Len(t, req.Contents[0].Parts, 2)
	require.Equal(t, "look at this", req.Contents[0].Parts[0].Text)
	require.NotNil(t, req.Contents[0].Parts[1].InlineData)
	require.Equal(t, "image/png", req.Contents[0].Parts[1].InlineData.MimeType)
	require.Equal(t, "model", req.Contents[1].Role)

	require.Contains(t, req.GenerationConfig, "maxOutputTokens")
	require.NotContains(t, req.GenerationConfig, "thinkingConfig")
}

func TestProvider_CreateMessage_VendorErrorFailsStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeData(w, `{"candidates":[{"content":{"parts":[{"text":"partial"}]}}]}`)
		writeData(w, `{"error":{"code":500,"message":"internal error","status":"INTERNAL"}}`)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "")

	out, err := p.CreateMessage(context.Background(), "",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hi")})
	require.NoError(t, err)

	chunks := drainChunks(t, out)

	require.Len(t, chunks, 2)
	require.Equal(t, "partial", chunks[0].Text)
	require.Equal(t, domain.ChunkError, chunks[1].Type)
	require.True(t, domain.IsCode(chunks[1].Err, domain.ErrCodeProvider))
	require.Contains(t, chunks[1].Err.Error(), "internal error")
}

func TestProvider_CreateMessage_BatchesDebugRecords(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	observability.SetLogger(zap.New(core))
	defer observability.SetLogger(zap.NewNop())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeData(w, `{"candidates":[{"content":{"parts":[{"text":"Hel"}]}}]}`)
		writeData(w, `{"candidates":[{"content":{"parts":[{"text":"lo"}]}}]}`)
	}))
	defer server.Close()

	p, err := gemini.NewProvider(gemini.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Timeout: 5,
	}, tokenizer.NewEstimator())
	require.NoError(t, err)

	out, err := p.CreateMessage(context.Background(), "",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hi")})
	require.NoError(t, err)
	drainChunks(t, out)

	// Per-chunk records are buffered, not logged one line per delta.
	require.Zero(t, logs.FilterMessage("gemini stream chunks").Len())

	require.NoError(t, p.Close())

	entries := logs.FilterMessage("gemini stream chunks").All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(2), entries[0].ContextMap()["count"])
}

func TestProvider_CompletePrompt(t *testing.T) {
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"chain","thought":true},{"text":"  pong  "}],"role":"model"},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":1}}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "")

	text, err := p.CompletePrompt(context.Background(), "ping")

	require.NoError(t, err)
	require.Equal(t, "pong", text)
	require.Equal(t, "/v1beta/models/gemini-2.5-flash:generateContent", path.Load())
}

func TestProvider_CompletePrompt_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, "")

	_, err := p.CompletePrompt(context.Background(), "ping")

	require.Error(t, err)
	require.True(t, domain.IsCode(err, domain.ErrCodeProvider))
}

func TestProvider_CountTokens_UsesEstimator(t *testing.T) {
	p := newTestProvider(t, "http://127.0.0.1:1", "")

	blocks := []domain.ContentBlock{domain.TextBlock("hello world")}

	require.Equal(t, tokenizer.NewEstimator().Count(blocks), p.CountTokens(context.Background(), blocks))
	require.Zero(t, p.CountTokens(context.Background(), nil))
}

func TestProvider_HasBuiltInRateLimit(t *testing.T) {
	p := newTestProvider(t, "", "")

	require.False(t, p.HasBuiltInRateLimit())
	require.Equal(t, "gemini", p.Name())
	require.Contains(t, p.SupportedModels(), "gemini-2.5-flash-thinking")
	require.IsIncreasing(t, p.SupportedModels())
}
