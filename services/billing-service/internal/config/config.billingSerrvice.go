package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Tanmoy095/ClinicLedger/shared/config"
)

type BillingConfig struct {
	CommonConfig *config.CommonConfig // this helps to access DB, Kafka and RabbitMQ configs directly

	StripeSecretKey     string // Stripe API secret key
	StripeWebhookSecret string // whsec_... used to verify webhook signatures
	JWTSecret           string // HS256 key of the upstream auth service

	HTTPAddr       string
	Currency       string
	GatewayTimeout time.Duration
	CatalogTimeout time.Duration
	SweepInterval  time.Duration // 0 disables the settlement sweeper
	EventsBackend  string        // kafka | rabbitmq | none
	LogLevel       slog.Level
}

// LoadConfig loads the billing service configuration.
// A .env file in the working directory is read first when present; real env vars win.
func LoadConfig() (*BillingConfig, error) {
	_ = godotenv.Load()

	//Load shared configuration
	common := config.LoadCommonConfig()

	cfg := &BillingConfig{
		CommonConfig:        common,
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		HTTPAddr:            envOr("HTTP_ADDR", ":8080"),
		Currency:            strings.ToLower(envOr("BILLING_CURRENCY", "usd")),
		EventsBackend:       strings.ToLower(envOr("EVENTS_BACKEND", "none")),
	}

	for name, v := range map[string]string{
		"STRIPE_SECRET_KEY":     cfg.StripeSecretKey,
		"STRIPE_WEBHOOK_SECRET": cfg.StripeWebhookSecret,
		"JWT_SECRET":            cfg.JWTSecret,
	} {
		if v == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
	}

	var err error
	if cfg.GatewayTimeout, err = durationOr("GATEWAY_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.CatalogTimeout, err = durationOr("CATALOG_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = durationOr("SWEEP_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.EventsBackend {
	case "kafka", "rabbitmq", "none":
	default:
		return nil, fmt.Errorf("EVENTS_BACKEND must be kafka, rabbitmq or none, got %q", cfg.EventsBackend)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(envOr("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration like 30s, got %q", key, raw)
	}
	return d, nil
}
