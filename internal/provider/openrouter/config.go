package openrouter

// Config contains OpenRouter provider configuration. Referer and Title
// feed the attribution headers OpenRouter uses for app rankings.
type Config struct {
	APIKey      string  `env:"OPENROUTER_API_KEY"`
	BaseURL     string  `env:"OPENROUTER_BASE_URL"     envDefault:"https://openrouter.ai"`
	Model       string  `env:"OPENROUTER_MODEL"        envDefault:"anthropic/claude-sonnet-4.5"`
	Timeout     int     `env:"OPENROUTER_TIMEOUT"      envDefault:"60"`
	Temperature float64 `env:"OPENROUTER_TEMPERATURE"  envDefault:"0"`
	Referer     string  `env:"OPENROUTER_REFERER"      envDefault:"https://github.com/davidbz/hearth"`
	Title       string  `env:"OPENROUTER_TITLE"        envDefault:"Hearth"`
}
