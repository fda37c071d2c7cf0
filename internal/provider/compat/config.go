package compat

// Config contains configuration for a user-supplied OpenAI-compatible
// endpoint. Nothing here has a built-in fallback: the base URL, API key,
// model file, and model ID must all be provided.
type Config struct {
	BaseURL     string  `env:"COMPAT_BASE_URL"`
	APIKey      string  `env:"COMPAT_API_KEY"`
	Model       string  `env:"COMPAT_MODEL"`
	ModelFile   string  `env:"COMPAT_MODEL_FILE"`
	Timeout     int     `env:"COMPAT_TIMEOUT"     envDefault:"60"`
	Temperature float64 `env:"COMPAT_TEMPERATURE" envDefault:"0"`
	StopTokens  string  `env:"COMPAT_STOP_TOKENS"`
}
