// Package config provides configuration for the CommuGraph backend.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the backend configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Upload limits, enforced at the HTTP layer.
	MaxUploadBytes int64
	MaxUploadFiles int

	// Session expiry
	SessionMaxAge   time.Duration
	CleanupInterval time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:     getEnv("DATABASE_URL", "file:commugraph.db?cache=shared&mode=rwc"),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 50<<20),
		MaxUploadFiles:  getEnvInt("MAX_UPLOAD_FILES", 64),
		SessionMaxAge:   time.Duration(getEnvInt("SESSION_MAX_AGE_MIN", 24*60)) * time.Minute,
		CleanupInterval: time.Duration(getEnvInt("CLEANUP_INTERVAL_MIN", 30)) * time.Minute,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}
