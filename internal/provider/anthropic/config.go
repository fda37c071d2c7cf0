package anthropic

// Config contains Anthropic provider configuration. The provider is
// enabled when an API key is present.
type Config struct {
	APIKey      string  `env:"ANTHROPIC_API_KEY"`
	BaseURL     string  `env:"ANTHROPIC_BASE_URL"    envDefault:"https://api.anthropic.com"`
	Model       string  `env:"ANTHROPIC_MODEL"       envDefault:"claude-sonnet-4-5"`
	Timeout     int     `env:"ANTHROPIC_TIMEOUT"     envDefault:"60"`
	Temperature float64 `env:"ANTHROPIC_TEMPERATURE" envDefault:"0"`
}
