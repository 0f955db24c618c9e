package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	OpenAIModel      string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	AnthropicAPIKey  string `env:"ANTHROPIC_API_KEY"`
	AnthropicBaseURL string `env:"ANTHROPIC_BASE_URL" envDefault:"https://api.anthropic.com"`
	AnthropicModel   string `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-sonnet-20240620"`
	DefaultModel     string `env:"DEFAULT_MODEL" envDefault:"premium-reasoning"`
	LLMOffline       bool   `env:"LLM_OFFLINE" envDefault:"false"`

	SystemPrompt     string        `env:"SYSTEM_PROMPT"`
	ProgressInterval time.Duration `env:"PROGRESS_INTERVAL" envDefault:"2s"`
	TurnTimeout      time.Duration `env:"TURN_TIMEOUT" envDefault:"5m"`
	StateTTL         time.Duration `env:"STATE_TTL" envDefault:"1h"`
	TurnHandleTTL    time.Duration `env:"TURN_HANDLE_TTL" envDefault:"15m"`

	LogFile       string `env:"LOG_FILE"`
	LogProduction bool   `env:"LOG_PRODUCTION" envDefault:"true"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
