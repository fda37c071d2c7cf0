package gemini

// Config contains Gemini provider configuration.
type Config struct {
	APIKey      string  `env:"GEMINI_API_KEY"`
	BaseURL     string  `env:"GEMINI_BASE_URL"    envDefault:"https://generativelanguage.googleapis.com"`
	Model       string  `env:"GEMINI_MODEL"       envDefault:"gemini-2.5-flash"`
	Timeout     int     `env:"GEMINI_TIMEOUT"     envDefault:"60"`
	Temperature float64 `env:"GEMINI_TEMPERATURE" envDefault:"0"`
}
