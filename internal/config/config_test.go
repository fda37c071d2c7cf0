package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		// Clear environment
		os.Clearenv()

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify defaults
		require.Empty(t, cfg.Providers)
		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, 30, cfg.Server.ReadTimeout)
		require.Equal(t, 30, cfg.Server.WriteTimeout)
		require.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		require.Equal(t, "info", cfg.Log.Level)
		require.Zero(t, cfg.Policy.RateLimitSeconds)
		require.Empty(t, cfg.Redis.Addr)
		require.Equal(t, 3600, cfg.Redis.TTLSeconds)
		require.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
		require.Equal(t, 60, cfg.OpenAI.Timeout)
		require.Equal(t, 3, cfg.OpenAI.MaxRetries)
		require.Empty(t, cfg.OpenAI.APIKey)
		require.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
		require.Equal(t, "llama3.2", cfg.Ollama.Model)
		require.Equal(t, 30, cfg.Ollama.PollSeconds)
		require.Empty(t, cfg.Compat.BaseURL)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		// Set environment variables using t.Setenv for automatic cleanup
		t.Setenv("PROVIDERS", "echo,ollama")
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("SERVER_READ_TIMEOUT", "60")
		t.Setenv("SERVER_WRITE_TIMEOUT", "60")
		t.Setenv("RATE_LIMIT_SECONDS", "2")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("ANTHROPIC_API_KEY", "test-key")
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("OPENAI_BASE_URL", "https://test.openai.com")
		t.Setenv("OPENAI_TIMEOUT", "120")
		t.Setenv("OPENAI_MAX_RETRIES", "5")

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify loaded values
		require.Equal(t, []string{"echo", "ollama"}, cfg.Providers)
		require.Equal(t, 9000, cfg.Server.Port)
		require.Equal(t, 60, cfg.Server.ReadTimeout)
		require.Equal(t, 60, cfg.Server.WriteTimeout)
		require.Equal(t, 2, cfg.Policy.RateLimitSeconds)
		require.Equal(t, "localhost:6379", cfg.Redis.Addr)
		require.Equal(t, "test-key", cfg.Anthropic.APIKey)
		require.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
		require.Equal(t, "https://test.openai.com", cfg.OpenAI.BaseURL)
		require.Equal(t, 120, cfg.OpenAI.Timeout)
		require.Equal(t, 5, cfg.OpenAI.MaxRetries)
	})
}

func TestParseDependenciesConfig(t *testing.T) {
	os.Clearenv()

	cfg := config.Load()
	deps := config.ParseDependenciesConfig(cfg)

	// Sub-config pointers alias the parent struct.
	require.Same(t, &cfg.Server, deps.Server)
	require.Same(t, &cfg.CORS, deps.CORS)
	require.Same(t, &cfg.Redis, deps.Redis)
	require.Same(t, &cfg.Ollama, deps.Ollama)
	require.Same(t, &cfg.Compat, deps.Compat)
}
