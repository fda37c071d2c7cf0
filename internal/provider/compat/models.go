package compat

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/davidbz/hearth/internal/domain"
)

// modelFile is the document root of the user-supplied model file.
type modelFile struct {
	Models map[string]modelEntry `yaml:"models"`
}

// modelEntry is one model stanza. Prices are USD per 1K tokens, matching
// the built-in tables.
type modelEntry struct {
	MaxTokens           int     `yaml:"max_tokens"`
	ContextWindow       int     `yaml:"context_window"`
	SupportsImages      bool    `yaml:"supports_images"`
	SupportsPromptCache bool    `yaml:"supports_prompt_cache"`
	InputPrice          float64 `yaml:"input_price"`
	OutputPrice         float64 `yaml:"output_price"`
	Description         string  `yaml:"description"`
}

// LoadModels reads model descriptors from a YAML file. The provider has no
// built-in table behind the file, so a missing or empty file is a
// configuration error.
func LoadModels(path string) (map[string]domain.ModelInfo, error) {
	if path == "" {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "model file is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeConfig, providerName,
			fmt.Errorf("failed to read model file %s: %w", path, err))
	}
	return parseModels(data)
}

func parseModels(data []byte) (map[string]domain.ModelInfo, error) {
	var file modelFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, domain.WrapError(domain.ErrCodeConfig, providerName,
			fmt.Errorf("failed to parse model file: %w", err))
	}
	if len(file.Models) == 0 {
		return nil, domain.NewError(domain.ErrCodeConfig, providerName, "model file defines no models")
	}

	models := make(map[string]domain.ModelInfo, len(file.Models))
	for id, entry := range file.Models {
		models[id] = domain.ModelInfo{
			MaxTokens:           entry.MaxTokens,
			ContextWindow:       entry.ContextWindow,
			SupportsImages:      entry.SupportsImages,
			SupportsPromptCache: entry.SupportsPromptCache,
			InputPrice:          entry.InputPrice,
			OutputPrice:         entry.OutputPrice,
			Description:         entry.Description,
		}
	}
	return models, nil
}

// resolveModel looks the configured ID up in the loaded table. There is no
// default to fall back to, so an empty or unknown ID fails.
func resolveModel(models map[string]domain.ModelInfo, id string) (domain.ModelDescriptor, error) {
	if id == "" {
		return domain.ModelDescriptor{}, domain.NewError(domain.ErrCodeConfig, providerName, "model is required")
	}
	info, ok := models[id]
	if !ok {
		return domain.ModelDescriptor{}, domain.Errorf(domain.ErrCodeConfig, providerName,
			"model %s is not defined in the model file", id)
	}
	return domain.ModelDescriptor{ID: id, Info: info}, nil
}
