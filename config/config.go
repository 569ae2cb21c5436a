package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TelegramToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	BotDebug      bool   `envconfig:"BOT_DEBUG" default:"false"`

	// APIBaseURL falls back to VITE_API_BASE_URL so existing portal .env files keep working.
	APIBaseURL    string        `envconfig:"API_BASE_URL"`
	APIKey        string        `envconfig:"API_KEY"`
	AdminToken    string        `envconfig:"ADMIN_TOKEN"`
	APITimeout    time.Duration `envconfig:"API_TIMEOUT" default:"15s"`
	APIRatePerSec float64       `envconfig:"API_RATE_PER_SEC" default:"5"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	Timezone          string        `envconfig:"TIMEZONE" default:"Africa/Blantyre"`
	DashboardInterval time.Duration `envconfig:"DASHBOARD_INTERVAL" default:"20m"`

	OpsAddr      string `envconfig:"OPS_ADDR" default:":8081"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	if c.TelegramToken == "" {
		return Config{}, errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = os.Getenv("VITE_API_BASE_URL")
	}
	if c.APIBaseURL == "" {
		return Config{}, errors.New("API_BASE_URL (or VITE_API_BASE_URL) is required")
	}
	if c.APIRatePerSec <= 0 {
		return Config{}, fmt.Errorf("API_RATE_PER_SEC must be positive, got %v", c.APIRatePerSec)
	}
	return c, nil
}

// Location resolves Timezone, falling back to UTC when the zone database lacks it.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
