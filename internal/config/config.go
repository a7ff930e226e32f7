package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/sixtyoneeighty/gpt-pilot/internal/provider/anthropic"
	"github.com/sixtyoneeighty/gpt-pilot/internal/provider/openai"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	LLM       LLMConfig
	Anthropic anthropic.Config
	OpenAI    openai.Config
}

// ServerConfig contains web UI server settings.
type ServerConfig struct {
	Host              string `env:"UI_HOST"                envDefault:"127.0.0.1"`
	Port              int    `env:"UI_PORT"                envDefault:"8125"`
	ReadHeaderTimeout int    `env:"UI_READ_HEADER_TIMEOUT" envDefault:"10"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// LLMConfig contains client-side completion settings shared by all
// providers.
type LLMConfig struct {
	// MaxRetries bounds the extra attempts after an incomplete stream.
	MaxRetries int `env:"LLM_MAX_RETRIES" envDefault:"1"`
	// Temperature is the default sampling temperature when a request
	// does not carry its own.
	Temperature float64 `env:"LLM_TEMPERATURE" envDefault:"0.7"`
	// RequestsPerMinute and Burst configure the client-side request
	// pacing applied before each provider call.
	RequestsPerMinute float64 `env:"LLM_REQUESTS_PER_MINUTE" envDefault:"60"`
	Burst             int     `env:"LLM_BURST"               envDefault:"10"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out
	Server    *ServerConfig
	CORS      *CORSConfig
	LLM       *LLMConfig
	Anthropic *anthropic.Config
	OpenAI    *openai.Config
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
		Server:    &cfg.Server,
		CORS:      &cfg.CORS,
		LLM:       &cfg.LLM,
		Anthropic: &cfg.Anthropic,
		OpenAI:    &cfg.OpenAI,
	}
}
