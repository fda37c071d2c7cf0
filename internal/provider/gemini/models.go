package gemini

import "github.com/davidbz/hearth/internal/domain"

const defaultModelID = "gemini-2.5-flash"

// Prices are USD per 1K tokens. The -thinking IDs are local aliases: the
// API knows only the base model, and the alias adds an explicit reasoning
// budget to the request.
var models = map[string]domain.ModelInfo{
	"gemini-2.5-pro": {
		MaxTokens:           65536,
		ContextWindow:       1048576,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.00125,
		OutputPrice:         0.01,
		CacheReadsPrice:     0.0003125,
		Description:         "Strongest Gemini model",
	},
	"gemini-2.5-pro-thinking": {
		MaxTokens:               65536,
		ContextWindow:           1048576,
		SupportsImages:          true,
		SupportsPromptCache:     true,
		SupportsReasoningBudget: true,
		InputPrice:              0.00125,
		OutputPrice:             0.01,
		CacheReadsPrice:         0.0003125,
		Description:             "gemini-2.5-pro with a fixed reasoning budget",
	},
	"gemini-2.5-flash": {
		MaxTokens:           65536,
		ContextWindow:       1048576,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.0003,
		OutputPrice:         0.0025,
		CacheReadsPrice:     0.000075,
		Description:         "Fast general-purpose model",
	},
	"gemini-2.5-flash-thinking": {
		MaxTokens:               65536,
		ContextWindow:           1048576,
		SupportsImages:          true,
		SupportsPromptCache:     true,
		SupportsReasoningBudget: true,
		InputPrice:              0.0003,
		OutputPrice:             0.0025,
		CacheReadsPrice:         0.000075,
		Description:             "gemini-2.5-flash with a fixed reasoning budget",
	},
	"gemini-2.0-flash": {
		MaxTokens:           8192,
		ContextWindow:       1048576,
		SupportsImages:      true,
		SupportsPromptCache: true,
		InputPrice:          0.0001,
		OutputPrice:         0.0004,
		CacheReadsPrice:     0.000025,
		Description:         "Previous generation flash",
	},
}
