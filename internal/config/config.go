package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration, loaded once in main and passed
// down explicitly. Placeholder price defaults make a half-configured Stripe
// deployment detectable instead of silently broken.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"DB_PATH" envDefault:"qrvivo.db"`
	BaseURL  string `env:"BASE_URL"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePriceMonthly  string `env:"STRIPE_PRICE_MONTHLY" envDefault:"price_monthly_placeholder"`
	StripePriceYearly   string `env:"STRIPE_PRICE_YEARLY" envDefault:"price_yearly_placeholder"`
}

// Load reads a .env file if present, then parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	return &cfg, nil
}
