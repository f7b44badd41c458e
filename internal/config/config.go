package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	// Payment processor (Stripe-compatible payment intents API).
	StripeSecretKey     string
	StripeBaseURL       string
	StripeWebhookSecret string
	PaymentProvider     string

	// Shipping policy knobs. Rates and the free-shipping threshold live in
	// the database; these are the static parts of the policy.
	PrimaryWarehouse string
	DomesticCountry  string
	CurrencyCode     string
	FragileSurcharge int64
	QuoteTimeout     time.Duration
	QuoteRateLimit   string
	IdempotencyTTL   time.Duration
	WebhookReplayTTL time.Duration

	// Outbound resilience for the payment processor client.
	OutboundTimeout       time.Duration
	RetryBase             time.Duration
	RetryMaxAttempts      int
	RetryJitterPercent    float64
	CircuitPSPMinReq      int
	CircuitPSPFailureRate float64
	CircuitPSPOpenFor     time.Duration

	// Worker / migrations.
	WorkerConcurrency int
	NotifyOpsEmail    string
	MigrationsPath    string
	MigrateOnStart    bool
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		StripeSecretKey:     k.String("STRIPE_SECRET_KEY"),
		StripeBaseURL:       k.String("STRIPE_BASE_URL"),
		StripeWebhookSecret: k.String("STRIPE_WEBHOOK_SECRET"),
		PaymentProvider:     valueOrDefault(k.String("PAYMENT_PROVIDER"), "stripe"),

		PrimaryWarehouse: valueOrDefault(k.String("SHIPPING_PRIMARY_WAREHOUSE"), "MA"),
		DomesticCountry:  valueOrDefault(k.String("SHIPPING_DOMESTIC_COUNTRY"), "FR"),
		CurrencyCode:     valueOrDefault(k.String("CURRENCY_CODE"), "EUR"),
		FragileSurcharge: parseInt64(k.String("SHIPPING_FRAGILE_SURCHARGE"), 300),
		QuoteTimeout:     parseDuration(k.String("QUOTE_TIMEOUT"), "10s"),
		QuoteRateLimit:   valueOrDefault(k.String("QUOTE_RATE_LIMIT"), "30-M"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "2m"),
		WebhookReplayTTL: parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "24h"),

		OutboundTimeout:       parseDuration(k.String("OUTBOUND_TIMEOUT"), "5s"),
		RetryBase:             parseDuration(k.String("RETRY_BASE"), "200ms"),
		RetryMaxAttempts:      parseInt(k.String("RETRY_MAX_ATTEMPTS"), 3),
		RetryJitterPercent:    parseFloat(k.String("RETRY_JITTER_PERCENT"), 0.2),
		CircuitPSPMinReq:      parseInt(k.String("CIRCUIT_PSP_MIN_REQUESTS"), 10),
		CircuitPSPFailureRate: parseFloat(k.String("CIRCUIT_PSP_FAILURE_RATE"), 0.5),
		CircuitPSPOpenFor:     parseDuration(k.String("CIRCUIT_PSP_OPEN_FOR"), "30s"),

		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 4),
		NotifyOpsEmail:    k.String("NOTIFY_OPS_EMAIL"),
		MigrationsPath:    valueOrDefault(k.String("MIGRATIONS_PATH"), "db/migrations"),
		MigrateOnStart:    parseBool(k.String("MIGRATE_ON_START")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(value string, fallback int) int {
	if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		return parsed
	}
	return fallback
}

func parseInt64(value string, fallback int64) int64 {
	if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return parsed
	}
	return fallback
}

func parseFloat(value string, fallback float64) float64 {
	if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
		return parsed
	}
	return fallback
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
