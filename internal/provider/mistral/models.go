package mistral

import "github.com/davidbz/hearth/internal/domain"

const defaultModelID = "mistral-large-latest"

// Prices are USD per 1K tokens. mistral-ocr-latest is a document model: it
// carries processing limits instead of chat pricing and rejects chat calls.
var models = map[string]domain.ModelInfo{
	"mistral-large-latest": {
		MaxTokens:     8192,
		ContextWindow: 131072,
		InputPrice:    0.002,
		OutputPrice:   0.006,
		Description:   "Flagship text model",
	},
	"pixtral-large-latest": {
		MaxTokens:      8192,
		ContextWindow:  131072,
		SupportsImages: true,
		InputPrice:     0.002,
		OutputPrice:    0.006,
		Description:    "Multimodal flagship",
	},
	"mistral-small-latest": {
		MaxTokens:      8192,
		ContextWindow:  131072,
		SupportsImages: true,
		InputPrice:     0.0001,
		OutputPrice:    0.0003,
		Description:    "Cheap general-purpose model",
	},
	"codestral-latest": {
		MaxTokens:     8192,
		ContextWindow: 262144,
		InputPrice:    0.0003,
		OutputPrice:   0.0009,
		Description:   "Code model, served from the codestral endpoint",
	},
	"mistral-ocr-latest": {
		DocumentProcessing: &domain.DocumentProcessingConfig{
			MaxPages:      1000,
			MaxFileSizeMB: 50,
			Formats:       []string{"pdf", "png", "jpeg", "docx", "pptx"},
		},
		Description: "Document OCR model, not chat capable",
	},
}
