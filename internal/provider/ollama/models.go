package ollama

import "github.com/davidbz/hearth/internal/domain"

const defaultModelID = "llama3.2"

// localModelInfo describes whatever model the daemon serves. Ollama
// publishes no capability metadata and local inference is unmetered, so
// the descriptor carries conservative defaults and zero prices.
var localModelInfo = domain.ModelInfo{
	MaxTokens:     4096,
	ContextWindow: 32768,
	Description:   "Local model served by Ollama",
}
