package openai

import "github.com/davidbz/hearth/internal/domain"

const defaultModelID = "gpt-4o"

// Prices are USD per 1K tokens. Cached input is billed at the published
// discounted read rate; OpenAI has no cache-write surcharge.
var models = map[string]domain.ModelInfo{
	"gpt-4o": {
		MaxTokens:           16384,
		ContextWindow:       128000,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.0025,
		OutputPrice:         0.01,
		CacheReadsPrice:     0.00125,
		Description:         "Flagship multimodal model",
	},
	"gpt-4o-mini": {
		MaxTokens:           16384,
		ContextWindow:       128000,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.00015,
		OutputPrice:         0.0006,
		CacheReadsPrice:     0.000075,
		Description:         "Cheap general-purpose model",
	},
	"gpt-4.1": {
		MaxTokens:           32768,
		ContextWindow:       1047576,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.002,
		OutputPrice:         0.008,
		CacheReadsPrice:     0.0005,
		Description:         "Long-context coding model",
	},
	"o1": {
		MaxTokens:           100000,
		ContextWindow:       200000,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.015,
		OutputPrice:         0.06,
		CacheReadsPrice:     0.0075,
		Description:         "Reasoning model, reports reasoning token usage",
	},
}
