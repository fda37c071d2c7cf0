package registry

import (
	"context"
	"strings"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider/anthropic"
	"github.com/davidbz/hearth/internal/provider/compat"
	"github.com/davidbz/hearth/internal/provider/echo"
	"github.com/davidbz/hearth/internal/provider/gemini"
	"github.com/davidbz/hearth/internal/provider/mistral"
	"github.com/davidbz/hearth/internal/provider/ollama"
	"github.com/davidbz/hearth/internal/provider/openai"
	"github.com/davidbz/hearth/internal/provider/openrouter"
)

// VendorNames lists every provider name the factory can construct, sorted.
var VendorNames = []string{
	"anthropic", "compat", "echo", "gemini", "mistral", "ollama", "openai", "openrouter",
}

// New constructs the named provider from its configuration section. An
// unknown name fails with a config-coded error naming the valid vendors.
func New(ctx context.Context, cfg *config.Config, estimator domain.TokenCounter, name string) (domain.Provider, error) {
	switch name {
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, estimator)
	case "compat":
		return compat.NewProvider(cfg.Compat, estimator)
	case "echo":
		return echo.NewProvider(estimator), nil
	case "gemini":
		return gemini.NewProvider(cfg.Gemini, estimator)
	case "mistral":
		return mistral.NewProvider(cfg.Mistral, estimator)
	case "ollama":
		return ollama.NewProvider(cfg.Ollama, estimator)
	case "openai":
		return openai.NewProvider(cfg.OpenAI, estimator)
	case "openrouter":
		return openrouter.NewProvider(ctx, cfg.OpenRouter, estimator)
	default:
		return nil, domain.Errorf(domain.ErrCodeConfig, name,
			"unknown provider, valid names are %s", strings.Join(VendorNames, ", "))
	}
}

// ConfiguredVendors returns the vendors worth constructing: the explicit
// PROVIDERS list when set, otherwise every vendor whose credentials are
// present. Ollama needs no credentials and is always in the detected set;
// echo is only built when asked for by name.
func ConfiguredVendors(cfg *config.Config) []string {
	if len(cfg.Providers) > 0 {
		return cfg.Providers
	}

	var names []string
	if cfg.Anthropic.APIKey != "" {
		names = append(names, "anthropic")
	}
	if cfg.Compat.BaseURL != "" && cfg.Compat.APIKey != "" {
		names = append(names, "compat")
	}
	if cfg.Gemini.APIKey != "" {
		names = append(names, "gemini")
	}
	if cfg.Mistral.APIKey != "" {
		names = append(names, "mistral")
	}
	names = append(names, "ollama")
	if cfg.OpenAI.APIKey != "" {
		names = append(names, "openai")
	}
	if cfg.OpenRouter.APIKey != "" {
		names = append(names, "openrouter")
	}
	return names
}
