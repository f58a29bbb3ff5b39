package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	TelegramToken string
	DatabaseURL   string
	LogLevel      string
	Port          string

	// AdminCacheTTL bounds how long a cached admin check (grant or denial)
	// stays valid before the Telegram API is asked again.
	AdminCacheTTL time.Duration

	// TimeOffsetHours shifts the civil calendar used for daily/weekly/monthly
	// counter rollovers. The bot's audience lives at UTC+3.
	TimeOffsetHours int

	// DefaultRollDuration is the inactivity timeout in minutes for roll
	// sessions started without an explicit duration.
	DefaultRollDuration int
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		Port:                getEnvOrDefault("PORT", "8080"),
		AdminCacheTTL:       time.Duration(getEnvInt("ADMIN_CACHE_TTL_SECONDS", 300)) * time.Second,
		TimeOffsetHours:     getEnvInt("TIME_OFFSET_HOURS", 3),
		DefaultRollDuration: getEnvInt("DEFAULT_ROLL_DURATION", 2),
	}

	if cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN"); cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}

	if cfg.DatabaseURL = os.Getenv("DATABASE_URL"); cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	return cfg, nil
}

// Location returns the fixed civil-calendar zone for counter rollovers.
func (c *Config) Location() *time.Location {
	return time.FixedZone("local", c.TimeOffsetHours*3600)
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
