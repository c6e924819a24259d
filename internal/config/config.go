package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	Environment string
	DatabaseDSN string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	JWTSecret   string
	SwaggerHost string
	NATSURL     string
	LogFile     string

	Cards   CardConfig
	Billing BillingConfig
	Stripe  StripeConfig
}

// CardConfig holds gift card lifecycle settings.
type CardConfig struct {
	CodeAttempts    int
	ConflictRetries int
	CacheTTL        time.Duration
	SystemEmail     string
	RecoveryLimit   int
}

// BillingConfig holds commission settings applied to company billing records.
type BillingConfig struct {
	DefaultCommissionRate string
	Currency              string
}

// StripeConfig holds the webhook signing secret.
type StripeConfig struct {
	WebhookSecret string
}

// Load builds Config from environment with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		DatabaseDSN: getEnv("DATABASE_DSN", "user:password@tcp(localhost:3306)/giftcards?charset=utf8mb4&parseTime=True&loc=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		JWTSecret:   getEnv("JWT_SECRET", "change-me"),
		SwaggerHost: os.Getenv("SWAGGER_HOST"),
		NATSURL:     os.Getenv("NATS_URL"),
		LogFile:     os.Getenv("LOG_FILE"),
		Cards: CardConfig{
			CodeAttempts:    getEnvInt("CARD_CODE_ATTEMPTS", 5),
			ConflictRetries: getEnvInt("CARD_CONFLICT_RETRIES", 3),
			CacheTTL:        getEnvDuration("CARD_CACHE_TTL", 5*time.Minute),
			SystemEmail:     getEnv("CARD_SYSTEM_EMAIL", "system@giftcards.local"),
			RecoveryLimit:   getEnvInt("CARD_RECOVERY_LIMIT", 100),
		},
		Billing: BillingConfig{
			DefaultCommissionRate: getEnv("BILLING_DEFAULT_COMMISSION_RATE", "5"),
			Currency:              getEnv("BILLING_CURRENCY", "EUR"),
		},
		Stripe: StripeConfig{
			WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
