package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pnfTracker/internal/adapters/logger" // Import the logger package for LogLevel
	"pnfTracker/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Account
	AccountID string

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel

	// Persistence: coalescing window for the write-behind saver
	SaveDebounce time.Duration

	// Seed settings used when the store has none for the account.
	// The derived tranche size is computed, never configured.
	DefaultSettings domain.Settings
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.AccountID = getEnv("ACCOUNT_ID", "local")
	if cfg.AccountID == "" {
		errs = append(errs, "ACCOUNT_ID must be set")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/portfolio.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	debounceMS := getEnvAsInt("SAVE_DEBOUNCE_MS", 1000)
	if debounceMS <= 0 {
		errs = append(errs, "SAVE_DEBOUNCE_MS must be positive")
	}
	cfg.SaveDebounce = time.Duration(debounceMS) * time.Millisecond

	// Default settings seeds (original application defaults).
	s := domain.Settings{
		TotalCapital:            getEnvAsFloat("DEFAULT_TOTAL_CAPITAL", 1200000),
		Buffer:                  getEnvAsFloat("DEFAULT_BUFFER", 200000),
		MaxAllocation:           getEnvAsFloat("DEFAULT_MAX_ALLOCATION", 0.25),
		MaxStocks:               getEnvAsInt("DEFAULT_MAX_STOCKS", 8),
		MaxPyramidsPerStock:     getEnvAsInt("DEFAULT_MAX_PYRAMIDS_PER_STOCK", 3),
		PyramidIncrementPercent: getEnvAsFloat("DEFAULT_PYRAMID_INCREMENT_PERCENT", 50),
	}
	if s.TotalCapital <= 0 {
		errs = append(errs, "DEFAULT_TOTAL_CAPITAL must be positive")
	}
	if s.Buffer < 0 || s.Buffer >= s.TotalCapital {
		errs = append(errs, "DEFAULT_BUFFER must be non-negative and less than DEFAULT_TOTAL_CAPITAL")
	}
	if s.MaxAllocation <= 0 || s.MaxAllocation > 1 {
		errs = append(errs, "DEFAULT_MAX_ALLOCATION must be in (0, 1]")
	}
	if s.MaxStocks < 1 {
		errs = append(errs, "DEFAULT_MAX_STOCKS must be at least 1")
	}
	if s.MaxPyramidsPerStock < 0 {
		errs = append(errs, "DEFAULT_MAX_PYRAMIDS_PER_STOCK cannot be negative")
	}
	if s.PyramidIncrementPercent <= 0 {
		errs = append(errs, "DEFAULT_PYRAMID_INCREMENT_PERCENT must be positive")
	}
	cfg.DefaultSettings = s

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
