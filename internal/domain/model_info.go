package domain

// DocumentProcessingConfig describes a model's non-chat document (OCR)
// capabilities. Only models that can ingest documents carry it.
type DocumentProcessingConfig struct {
	MaxPages      int      `json:"max_pages"`
	MaxFileSizeMB int      `json:"max_file_size_mb"`
	Formats       []string `json:"formats"`
}

// ModelInfo is static capability and pricing metadata for a model. Prices
// are USD per 1K tokens.
type ModelInfo struct {
	MaxTokens               int                       `json:"max_tokens"`
	ContextWindow           int                       `json:"context_window"`
	SupportsImages          bool                      `json:"supports_images"`
	SupportsPromptCache     bool                      `json:"supports_prompt_cache"`
	SupportsReasoningBudget bool                      `json:"supports_reasoning_budget,omitempty"`
	InputPrice              float64                   `json:"input_price"`
	OutputPrice             float64                   `json:"output_price"`
	CacheWritesPrice        float64                   `json:"cache_writes_price,omitempty"`
	CacheReadsPrice         float64                   `json:"cache_reads_price,omitempty"`
	DocumentProcessing      *DocumentProcessingConfig `json:"document_processing,omitempty"`
	Description             string                    `json:"description,omitempty"`
}

// ModelDescriptor pairs a resolved model ID with its metadata. Adapters
// resolve the descriptor once at construction; the ID is never empty.
type ModelDescriptor struct {
	ID   string    `json:"id"`
	Info ModelInfo `json:"info"`
}

// ResolveModel picks the descriptor for requested from the table, falling
// back to the default ID when requested is empty or unknown. Every
// table-backed adapter resolves its configured model this way.
func ResolveModel(table map[string]ModelInfo, requested, defaultID string) ModelDescriptor {
	if requested != "" {
		if info, ok := table[requested]; ok {
			return ModelDescriptor{ID: requested, Info: info}
		}
	}
	return ModelDescriptor{ID: defaultID, Info: table[defaultID]}
}
