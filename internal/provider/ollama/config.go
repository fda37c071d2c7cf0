package ollama

// Config contains Ollama provider configuration. No API key: the daemon is
// local and unauthenticated. StopTokens is a comma-separated list forwarded
// verbatim to the model options.
type Config struct {
	BaseURL     string  `env:"OLLAMA_BASE_URL"     envDefault:"http://localhost:11434"`
	Model       string  `env:"OLLAMA_MODEL"        envDefault:"llama3.2"`
	Timeout     int     `env:"OLLAMA_TIMEOUT"      envDefault:"60"`
	Temperature float64 `env:"OLLAMA_TEMPERATURE"  envDefault:"0"`
	StopTokens  string  `env:"OLLAMA_STOP_TOKENS"`
	PollSeconds int     `env:"OLLAMA_POLL_SECONDS" envDefault:"30"`
}
