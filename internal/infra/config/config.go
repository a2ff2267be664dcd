package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	TelegramToken    string
	DatabaseURL      string
	AuthorizedChatID int64 // single authorized owner
	LogLevel         string
	Environment      string
	CronSpecTick     string // daily obligation-processing tick
	MaxTickRuntime   time.Duration
	StoreTimeout     time.Duration // bound on any single store operation
	StoreRetries     int           // transient-error retries within a tick step
	HistoryMonths    int           // months shown in the balance history view
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	chatIDStr := os.Getenv("AUTHORIZED_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("AUTHORIZED_CHAT_ID is not set")
	}
	cfg.AuthorizedChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTHORIZED_CHAT_ID: %w", err)
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpecTick = os.Getenv("CRON_SPEC_TICK")
	if cfg.CronSpecTick == "" {
		cfg.CronSpecTick = "0 8 * * *" // Default: 08:00 daily
	}

	cfg.MaxTickRuntime, err = durationEnv("MAX_TICK_RUNTIME", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.StoreTimeout, err = durationEnv("STORE_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.StoreRetries, err = intEnv("STORE_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	cfg.HistoryMonths, err = intEnv("HISTORY_MONTHS", 6)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
