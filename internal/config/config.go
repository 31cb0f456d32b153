package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	PollInterval             time.Duration
	BatchSize                int
	OutboxRetention          time.Duration
	RateLimitPerMinute       int
	RateLimitBurst           int
	TenantRateLimitPerMinute int
	TenantRateLimitBurst     int
	GeminiAPIKey             string
	GeminiModel              string
	QueueServiceURL          string
	DisplayTenantID          string
	DisplayBranchID          string
	CuePollInterval          time.Duration
	ReconcileInterval        time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                     port,
		DatabaseURL:              os.Getenv("DB_DSN"),
		PollInterval:             readDurationSeconds("OUTBOX_POLL_INTERVAL_SECONDS", 1),
		BatchSize:                readInt("OUTBOX_BATCH_SIZE", 100),
		OutboxRetention:          readDurationSeconds("OUTBOX_RETENTION_SECONDS", 3600),
		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		TenantRateLimitPerMinute: readInt("TENANT_RATE_LIMIT_PER_MIN", 600),
		TenantRateLimitBurst:     readInt("TENANT_RATE_LIMIT_BURST", 120),
		GeminiAPIKey:             os.Getenv("GEMINI_API_KEY"),
		GeminiModel:              os.Getenv("GEMINI_MODEL"),
		QueueServiceURL:          os.Getenv("QUEUE_SERVICE_URL"),
		DisplayTenantID:          os.Getenv("DISPLAY_TENANT_ID"),
		DisplayBranchID:          os.Getenv("DISPLAY_BRANCH_ID"),
		CuePollInterval:          readDurationSeconds("CUE_POLL_INTERVAL_SECONDS", 2),
		ReconcileInterval:        readDurationSeconds("RECONCILE_INTERVAL_SECONDS", 15),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
