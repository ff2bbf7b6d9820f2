package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Upstream UpstreamConfig `envconfig:"UPSTREAM"`
	Session  SessionConfig  `envconfig:"SESSION"`
	Cache    CacheConfig    `envconfig:"CACHE"`
	Goals    GoalsConfig    `envconfig:"GOALS"`
	Chat     ChatConfig     `envconfig:"CHAT"`
	Logger   LoggerConfig   `envconfig:"LOG"`
	Security SecurityConfig `envconfig:"SECURITY"`
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"8084" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s" validate:"gt=0"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"60s" validate:"gte=5s"`
}

type UpstreamConfig struct {
	BaseURL    string        `envconfig:"BASE_URL" default:"http://localhost:8000" validate:"required,url"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"15s" validate:"gt=0"`
	MaxRetries uint64        `envconfig:"MAX_RETRIES" default:"3"`
	FuelTop    int           `envconfig:"FUEL_TOP" default:"5000" validate:"gt=0"`
}

type SessionConfig struct {
	Secret     string        `envconfig:"SECRET" required:"true" validate:"min=16"`
	CookieName string        `envconfig:"COOKIE_NAME" default:"posto_session" validate:"required"`
	DefaultTTL time.Duration `envconfig:"DEFAULT_TTL" default:"1h" validate:"gt=0"`
	Secure     bool          `envconfig:"SECURE" default:"false"`
}

type CacheConfig struct {
	RedisAddr string        `envconfig:"REDIS_ADDR"`
	TTL       time.Duration `envconfig:"TTL" default:"30s" validate:"gt=0"`
}

type GoalsConfig struct {
	Store string `envconfig:"STORE" default:"jsonfile:data/goals.json" validate:"required"`
}

type ChatConfig struct {
	OpenAIKey     string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL"`
}

type LoggerConfig struct {
	Level  string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Format string `envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int      `envconfig:"RATE_LIMIT_RPS" default:"100" validate:"gt=0"`
	RateLimitBurst  int      `envconfig:"RATE_LIMIT_BURST" default:"20" validate:"gt=0"`
	LoginPerMinute  int      `envconfig:"LOGIN_PER_MINUTE" default:"10" validate:"gt=0"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
	IsDevelopment   bool     `envconfig:"DEVELOPMENT" default:"true"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	scheme, _, ok := strings.Cut(c.Goals.Store, ":")
	if !ok || (scheme != "jsonfile" && scheme != "sqlite") {
		return fmt.Errorf("goals store %q must look like jsonfile:<path> or sqlite:<path>", c.Goals.Store)
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Summary keeps the session secret and API keys out of the startup log.
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"addr":          c.Address(),
		"upstream":      c.Upstream.BaseURL,
		"poll_interval": c.Server.PollInterval.String(),
		"cache":         c.Cache.RedisAddr != "",
		"goals_store":   c.Goals.Store,
		"chat_llm":      c.Chat.OpenAIKey != "",
		"log_level":     c.Logger.Level,
	}
}
