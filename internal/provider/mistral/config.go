package mistral

// Config contains Mistral provider configuration. An empty BaseURL routes
// by model: codestral models go to their dedicated endpoint.
type Config struct {
	APIKey      string  `env:"MISTRAL_API_KEY"`
	BaseURL     string  `env:"MISTRAL_BASE_URL"`
	Model       string  `env:"MISTRAL_MODEL"       envDefault:"mistral-large-latest"`
	Timeout     int     `env:"MISTRAL_TIMEOUT"     envDefault:"60"`
	Temperature float64 `env:"MISTRAL_TEMPERATURE" envDefault:"0"`
}
