package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DatabaseURL string

	// JWT (admin API)
	JWTSecret string

	// Storage
	StoragePath string

	// Background Workers
	WorkerCount int

	// Signing
	PublicBaseURL     string
	StalePreviewHours int
	IPLookupURL       string
	IPLookupTimeoutMS int

	// CORS
	AllowedOrigins []string

	// Email (Resend)
	ResendAPIKey  string
	FromEmail     string
	OperatorEmail string

	// Sentry
	SentryDSN string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		StoragePath:       getEnv("STORAGE_PATH", "./storage"),
		WorkerCount:       getEnvAsInt("WORKER_COUNT", 5),
		PublicBaseURL:     getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		StalePreviewHours: getEnvAsInt("STALE_PREVIEW_HOURS", 72),
		IPLookupURL:       getEnv("IP_LOOKUP_URL", "https://api.ipify.org"),
		IPLookupTimeoutMS: getEnvAsInt("IP_LOOKUP_TIMEOUT_MS", 2000),
		AllowedOrigins:    getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
		ResendAPIKey:      getEnv("RESEND_API_KEY", ""),
		FromEmail:         getEnv("FROM_EMAIL", "contratos@eventra.app"),
		OperatorEmail:     getEnv("OPERATOR_EMAIL", ""),
		SentryDSN:         getEnv("SENTRY_DSN", ""),
	}

	// Validate required configuration
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" && cfg.Environment == "production" {
		return nil, fmt.Errorf("JWT_SECRET is required in production")
	}

	// Set default JWT secret for development
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-change-in-production"
	}

	return cfg, nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice reads an environment variable as comma-separated slice
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
