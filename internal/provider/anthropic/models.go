package anthropic

import "github.com/davidbz/hearth/internal/domain"

const defaultModelID = "claude-sonnet-4-5"

// Prices are USD per 1K tokens. Prompt-cache rates follow the published
// 1.25x write / 0.1x read multipliers on the input price.
var models = map[string]domain.ModelInfo{
	"claude-sonnet-4-5": {
		MaxTokens:               64000,
		ContextWindow:           200000,
		SupportsImages:          true,
		SupportsPromptCache:     true,
		SupportsReasoningBudget: true,
		InputPrice:              0.003,
		OutputPrice:             0.015,
		CacheWritesPrice:        0.00375,
		CacheReadsPrice:         0.0003,
		Description:             "Best balance of intelligence and speed",
	},
	"claude-opus-4-1": {
		MaxTokens:               32000,
		ContextWindow:           200000,
		SupportsImages:          true,
		SupportsPromptCache:     true,
		SupportsReasoningBudget: true,
		InputPrice:              0.015,
		OutputPrice:             0.075,
		CacheWritesPrice:        0.01875,
		CacheReadsPrice:         0.0015,
		Description:             "Most capable model for complex reasoning",
	},
	"claude-3-7-sonnet-20250219": {
		MaxTokens:               8192,
		ContextWindow:           200000,
		SupportsImages:          true,
		SupportsPromptCache:     true,
		SupportsReasoningBudget: true,
		InputPrice:              0.003,
		OutputPrice:             0.015,
		CacheWritesPrice:        0.00375,
		CacheReadsPrice:         0.0003,
		Description:             "Previous generation sonnet",
	},
	"claude-3-5-haiku-20241022": {
		MaxTokens:               8192,
		ContextWindow:           200000,
		SupportsImages:          true,
		SupportsPromptCache:     true,
		InputPrice:              0.0008,
		OutputPrice:             0.004,
		CacheWritesPrice:        0.001,
		CacheReadsPrice:         0.00008,
		Description:             "Fastest model for lightweight tasks",
	},
}
