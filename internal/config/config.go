package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/davidbz/hearth/internal/provider/anthropic"
	"github.com/davidbz/hearth/internal/provider/compat"
	"github.com/davidbz/hearth/internal/provider/gemini"
	"github.com/davidbz/hearth/internal/provider/mistral"
	"github.com/davidbz/hearth/internal/provider/ollama"
	"github.com/davidbz/hearth/internal/provider/openai"
	"github.com/davidbz/hearth/internal/provider/openrouter"
)

// Config represents the gateway configuration.
type Config struct {
	// Providers pins the vendor set constructed at startup. When empty,
	// every vendor with credentials present is constructed.
	Providers []string `env:"PROVIDERS" envSeparator:","`

	Server     ServerConfig
	CORS       CORSConfig
	Log        LogConfig
	Policy     PolicyConfig
	Redis      RedisConfig
	Anthropic  anthropic.Config
	OpenAI     openai.Config
	Gemini     gemini.Config
	Mistral    mistral.Config
	OpenRouter openrouter.Config
	Ollama     ollama.Config
	Compat     compat.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"30"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level       string `env:"LOG_LEVEL"       envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}

// PolicyConfig contains provider pacing settings. A zero rate limit
// disables pacing entirely.
type PolicyConfig struct {
	RateLimitSeconds int `env:"RATE_LIMIT_SECONDS" envDefault:"0"`
}

// RedisConfig contains prompt cache settings. An empty address disables
// the cache.
type RedisConfig struct {
	Addr       string `env:"REDIS_ADDR"`
	Password   string `env:"REDIS_PASSWORD"`
	DB         int    `env:"REDIS_DB"          envDefault:"0"`
	TTLSeconds int    `env:"CACHE_TTL_SECONDS" envDefault:"3600"`
}

// DepConfig is used for dependency injection with dig. The provider
// configs all share the type name Config, so the fields are named rather
// than embedded; dig provides each by its distinct pointer type.
type DepConfig struct {
	dig.Out

	Server     *ServerConfig
	CORS       *CORSConfig
	Log        *LogConfig
	Policy     *PolicyConfig
	Redis      *RedisConfig
	Anthropic  *anthropic.Config
	OpenAI     *openai.Config
	Gemini     *gemini.Config
	Mistral    *mistral.Config
	OpenRouter *openrouter.Config
	Ollama     *ollama.Config
	Compat     *compat.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:     &cfg.Server,
		CORS:       &cfg.CORS,
		Log:        &cfg.Log,
		Policy:     &cfg.Policy,
		Redis:      &cfg.Redis,
		Anthropic:  &cfg.Anthropic,
		OpenAI:     &cfg.OpenAI,
		Gemini:     &cfg.Gemini,
		Mistral:    &cfg.Mistral,
		OpenRouter: &cfg.OpenRouter,
		Ollama:     &cfg.Ollama,
		Compat:     &cfg.Compat,
	}
}
