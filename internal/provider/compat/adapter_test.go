package compat_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider/compat"
	"github.com/davidbz/hearth/internal/tokenizer"
)

const modelFileYAML = `models:
  llama-3.3-70b:
    max_tokens: 8192
    context_window: 131072
    supports_images: true
    input_price: 0.00059
    output_price: 0.00079
    description: Self-hosted llama
  qwq-32b:
    max_tokens: 16384
    context_window: 32768
`

func writeModelFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "models.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestProvider(t *testing.T, baseURL string) *compat.Provider {
	t.Helper()

	p, err := compat.NewProvider(compat.Config{
		BaseURL:   baseURL,
		APIKey:    "test-key",
		Model:     "llama-3.3-70b",
		ModelFile: writeModelFile(t, modelFileYAML),
		Timeout:   5,
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

func TestLoadModels(t *testing.T) {
	models, err := compat.LoadModels(writeModelFile(t, modelFileYAML))

	require.NoError(t, err)
	require.Len(t, models, 2)

	llama := models["llama-3.3-70b"]
	require.Equal(t, 8192, llama.MaxTokens)
	require.Equal(t, 131072, llama.ContextWindow)
	require.True(t, llama.SupportsImages)
	require.InDelta(t, 0.00059, llama.InputPrice, 1e-9)
	require.InDelta(t, 0.00079, llama.OutputPrice, 1e-9)
	require.Equal(t, "Self-hosted llama", llama.Description)
}

func TestNewProvider_RequiresExplicitConfig(t *testing.T) {
	valid := func(t *testing.T) compat.Config {
		return compat.Config{
			BaseURL:   "http://localhost:8000",
			APIKey:    "test-key",
			Model:     "llama-3.3-70b",
			ModelFile: writeModelFile(t, modelFileYAML),
			Timeout:   5,
		}
	}

	tests := []struct {
		name   string
		mutate func(t *testing.T, cfg *compat.Config)
	}{
		{"should fail without base URL", func(t *testing.T, cfg *compat.Config) {
			cfg.BaseURL = ""
		}},
		{"should fail without API key", func(t *testing.T, cfg *compat.Config) {
			cfg.APIKey = ""
		}},
		{"should fail without model file", func(t *testing.T, cfg *compat.Config) {
			cfg.ModelFile = ""
		}},
		{"should fail when model file is missing", func(t *testing.T, cfg *compat.Config) {
			cfg.ModelFile = filepath.Join(t.TempDir(), "absent.yaml")
		}},
		{"should fail when model file defines no models", func(t *testing.T, cfg *compat.Config) {
			cfg.ModelFile = writeModelFile(t, "models: {}\n")
		}},
		{"should fail when model file is malformed", func(t *testing.T, cfg *compat.Config) {
			cfg.ModelFile = writeModelFile(t, "models: [not a map\n")
		}},
		{"should fail without model", func(t *testing.T, cfg *compat.Config) {
			cfg.Model = ""
		}},
		{"should fail when model is not in the file", func(t *testing.T, cfg *compat.Config) {
			cfg.Model = "gpt-4o"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(t, &cfg)

			p, err := compat.NewProvider(cfg, tokenizer.NewEstimator())

			require.Error(t, err)
			require.Nil(t, p)
			require.True(t, domain.IsCode(err, domain.ErrCodeConfig))
		})
	}
}

func TestProvider_CreateMessage_NormalizesStream(t *testing.T) {
	var body atomic.Value
	var auth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body.Store(raw)
		auth.Store(r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		writeData(w, `{"choices":[{"delta":{"reasoning":"weighing options"}}]}`)
		writeData(w, `{"choices":[{"delta":{"content":"Hel"}}]}`)
		writeData(w, `{"choices":[{"delta":{"content":"lo"}}]}`)
		writeData(w, `{"choices":[],"usage":{"prompt_tokens":11,"completion_tokens":4,"completion_tokens_details":{"reasoning_tokens":2}}}`)
		writeData(w, "[DONE]")
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	out, err := p.CreateMessage(context.Background(), "be brief",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hi")})
	require.NoError(t, err)

	chunks := drainChunks(t, out)

	require.Len(t, chunks, 4)
	require.Equal(t, domain.ChunkReasoning, chunks[0].Type)
	require.Equal(t, "weighing options", chunks[0].Text)
	require.Equal(t, "Hel", chunks[1].Text)
	require.Equal(t, "lo", chunks[2].Text)

	last := chunks[3]
	require.Equal(t, domain.ChunkUsage, last.Type)
	require.Equal(t, 11, last.Usage.InputTokens)
	require.Equal(t, 4, last.Usage.OutputTokens)
	require.NotNil(t, last.Usage.ReasoningTokens)
	require.Equal(t, 2, *last.Usage.ReasoningTokens)
	require.Nil(t, last.Usage.TotalCost)

	require.Equal(t, "Bearer test-key", auth.Load().(string))

	var req map[string]any
	require.NoError(t, json.Unmarshal(body.Load().([]byte), &req))
	require.Equal(t, "llama-3.3-70b", req["model"])
	require.Equal(t, true, req["stream"])
	require.Equal(t, map[string]any{"include_usage": true}, req["stream_options"])
}

func TestProvider_CreateMessage_ForwardsStopTokens(t *testing.T) {
	var body atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		body.Store(raw)
		writeData(w, `{"choices":[{"delta":{"content":"ok"}}]}`)
		writeData(w, "[DONE]")
	}))
	defer server.Close()

	p, err := compat.NewProvider(compat.Config{
		BaseURL:    server.URL,
		APIKey:     "test-key",
		Model:      "qwq-32b",
		ModelFile:  writeModelFile(t, modelFileYAML),
		Timeout:    5,
		StopTokens: ",,DONE, ,END,",
	}, tokenizer.NewEstimator())
	require.NoError(t, err)
	defer p.Close()

	out, err := p.CreateMessage(context.Background(), "",
		[]domain.Turn{domain.TextTurn(domain.RoleUser, "hi")})
	require.NoError(t, err)
	drainChunks(t, out)

	var req struct {
		Stop []string `json:"stop"`
	}
	require.NoError(t, json.Unmarshal(body.Load().([]byte), &req))
	require.Equal(t, []string{"DONE", "END"}, req.Stop)
}

func TestProvider_CompletePrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"  pong  "}}]}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	text, err := p.CompletePrompt(context.Background(), "ping")

	require.NoError(t, err)
	require.Equal(t, "pong", text)
}

func TestProvider_Identity(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	require.Equal(t, "compat", p.Name())
	require.False(t, p.HasBuiltInRateLimit())
	require.Equal(t, "llama-3.3-70b", p.Model().ID)
	require.Equal(t, []string{"llama-3.3-70b", "qwq-32b"}, p.SupportedModels())
}

func TestProvider_CountTokens_UsesEstimator(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	blocks := []domain.ContentBlock{domain.TextBlock("hello world")}

	require.Equal(t, tokenizer.NewEstimator().Count(blocks), p.CountTokens(context.Background(), blocks))
	require.Zero(t, p.CountTokens(context.Background(), nil))
}
