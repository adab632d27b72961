package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	PublicBaseURL    string
	StorageBackend   string
	StoragePath      string
	StorageBaseURL   string
	GCSBucket        string
	GCSCredentials   string
	RedisURL         string
	ProviderAPIKey   string
	ProviderBaseURL  string
	ProviderModel    string
	ProviderTimeout  time.Duration
	GenerationCost   decimal.Decimal
	PollInterval     time.Duration
	PollStaleAfter   time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PublicBaseURL:    getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		StorageBackend:   getEnv("STORAGE_BACKEND", "filesystem"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),
		GCSBucket:        os.Getenv("GCS_BUCKET"),
		GCSCredentials:   os.Getenv("GCS_CREDENTIALS_JSON"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ProviderAPIKey:   os.Getenv("PROVIDER_API_KEY"),
		ProviderBaseURL:  getEnv("PROVIDER_BASE_URL", "https://api.vidmotion.ai/v1"),
		ProviderModel:    getEnv("PROVIDER_MODEL", "motion-1.5"),
		ProviderTimeout:  time.Second * time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30)),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 15)),
		PollStaleAfter:   time.Second * time.Duration(getEnvInt("POLL_STALE_AFTER_SECONDS", 30)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitList(os.Getenv("ALLOWED_ORIGINS")),
	}

	cost := getEnv("GENERATION_COST", "20")
	parsed, err := decimal.NewFromString(cost)
	if err != nil {
		return nil, fmt.Errorf("GENERATION_COST is not a number: %w", err)
	}
	cfg.GenerationCost = parsed

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.StorageBackend == "gcs" && cfg.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required when STORAGE_BACKEND=gcs")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
