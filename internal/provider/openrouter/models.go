package openrouter

import (
	"strconv"

	"github.com/davidbz/hearth/internal/domain"
)

const defaultModelID = "anthropic/claude-sonnet-4.5"

// fallbackModels serves model resolution when the live list cannot be
// fetched. Only the default routing target is known then.
var fallbackModels = map[string]domain.ModelInfo{
	defaultModelID: {
		MaxTokens:           64000,
		ContextWindow:       200000,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.003,
		OutputPrice:         0.015,
		CacheWritesPrice:    0.00375,
		CacheReadsPrice:     0.0003,
		Description:         "Default routing target",
	},
}

// modelList is the GET /api/v1/models payload.
type modelList struct {
	Data []modelEntry `json:"data"`
}

type modelEntry struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ContextLength int    `json:"context_length"`
	Architecture  *struct {
		InputModalities []string `json:"input_modalities"`
	} `json:"architecture"`
	TopProvider *struct {
		MaxCompletionTokens int `json:"max_completion_tokens"`
	} `json:"top_provider"`
	Pricing *struct {
		Prompt          string `json:"prompt"`
		Completion      string `json:"completion"`
		InputCacheRead  string `json:"input_cache_read"`
		InputCacheWrite string `json:"input_cache_write"`
	} `json:"pricing"`
}

func (e modelEntry) toModelInfo() domain.ModelInfo {
	info := domain.ModelInfo{
		ContextWindow: e.ContextLength,
		Description:   e.Name,
	}

	if e.TopProvider != nil {
		info.MaxTokens = e.TopProvider.MaxCompletionTokens
	}

	if e.Architecture != nil {
		for _, modality := range e.Architecture.InputModalities {
			if modality == "image" {
				info.SupportsImages = true
			}
		}
	}

	if e.Pricing != nil {
		info.InputPrice = parseTokenPrice(e.Pricing.Prompt)
		info.OutputPrice = parseTokenPrice(e.Pricing.Completion)
		info.CacheReadsPrice = parseTokenPrice(e.Pricing.InputCacheRead)
		info.CacheWritesPrice = parseTokenPrice(e.Pricing.InputCacheWrite)
		info.SupportsPromptCache = info.CacheReadsPrice > 0
	}

	return info
}

// parseTokenPrice converts OpenRouter's per-token price strings to the
// per-1K convention used everywhere else. Absent or malformed prices read
// as zero.
func parseTokenPrice(raw string) float64 {
	if raw == "" {
		return 0
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return price * 1000
}
