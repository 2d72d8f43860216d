package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	AuthURL     string `env:"AUTH_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	MaxWebSocketConnections int `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxSessionsPerUser      int `env:"MAX_SESSIONS_PER_USER" default:"3"`
	DeliveryQueueCapacity   int `env:"DELIVERY_QUEUE_CAPACITY" default:"256"`

	// Per-tier HTTP rate limits, requests per second.
	RateLimitAnonymous float64 `env:"RATE_LIMIT_ANONYMOUS" default:"5"`
	RateLimitBasic     float64 `env:"RATE_LIMIT_BASIC" default:"20"`
	RateLimitPremium   float64 `env:"RATE_LIMIT_PREMIUM" default:"60"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST" default:"10"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"15s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
		"AUTH_URL":     cfg.AuthURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if _, err := url.ParseRequestURI(cfg.AuthURL); err != nil {
		return fmt.Errorf("AUTH_URL must be a valid URL: %w", err)
	}

	if cfg.MaxSessionsPerUser < 1 {
		return fmt.Errorf("MAX_SESSIONS_PER_USER must be at least 1, got %d", cfg.MaxSessionsPerUser)
	}
	if cfg.DeliveryQueueCapacity < 1 {
		return fmt.Errorf("DELIVERY_QUEUE_CAPACITY must be at least 1, got %d", cfg.DeliveryQueueCapacity)
	}
	if cfg.RateLimitAnonymous <= 0 || cfg.RateLimitBasic <= 0 || cfg.RateLimitPremium <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	if cfg.AppEnv == "production" {
		if err := validateProductionSSL(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func validateProductionSSL(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL must be a valid URL: %w", err)
	}
	switch mode := strings.ToLower(u.Query().Get("sslmode")); mode {
	case "disable", "allow":
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
