package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "DB_PATH", "BASE_URL",
		"STRIPE_SECRET_KEY", "STRIPE_WEBHOOK_SECRET",
		"STRIPE_PRICE_MONTHLY", "STRIPE_PRICE_YEARLY",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.DBPath != "qrvivo.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.StripePriceMonthly != "price_monthly_placeholder" {
		t.Errorf("monthly price default = %q", cfg.StripePriceMonthly)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BASE_URL", "https://qrvivo.example.com")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_PRICE_MONTHLY", "price_real_m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("port = %q, want 9090", cfg.Port)
	}
	if cfg.BaseURL != "https://qrvivo.example.com" {
		t.Errorf("base url = %q", cfg.BaseURL)
	}
	if cfg.StripeSecretKey != "sk_test_123" {
		t.Errorf("secret key = %q", cfg.StripeSecretKey)
	}
	if cfg.StripePriceMonthly != "price_real_m" {
		t.Errorf("monthly price = %q", cfg.StripePriceMonthly)
	}
}
