package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN) for the policy rule store and accounts
	DatabaseURL string

	// Redis address for the session cache (host:port)
	RedisAddr string

	// Optional Redis password
	RedisPassword string

	// Server bind address (host:port)
	ServerAddr string

	// Symmetric signing secret shared by all credential operations
	SigningSecret string

	// Credential lifetime; expiry is always issued_at + TokenLifetime
	TokenLifetime time.Duration

	// Deployment environment label carried in every request context (e.g. "prod")
	Environment string

	// Path prefixes that bypass authentication entirely
	PublicPrefixes []string

	// Enable debug logging
	Debug bool
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", "file:portcullis.db"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		ServerAddr:     getEnv("SERVER_ADDR", "localhost:8080"),
		SigningSecret:  getEnv("SIGNING_SECRET", ""),
		TokenLifetime:  getEnvDuration("TOKEN_LIFETIME", 2*time.Hour),
		Environment:    getEnv("ENVIRONMENT", "dev"),
		PublicPrefixes: getEnvList("PUBLIC_PREFIXES", []string{"/healthz", "/v1/auth/login"}),
		Debug:          getEnvBool("DEBUG", false),
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.SigningSecret == "" {
		return nil, fmt.Errorf("SIGNING_SECRET is required")
	}

	if cfg.TokenLifetime <= 0 {
		return nil, fmt.Errorf("TOKEN_LIFETIME must be positive, got %s", cfg.TokenLifetime)
	}

	if cfg.Environment == "" {
		return nil, fmt.Errorf("ENVIRONMENT is required")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value.
// Accepts Go duration syntax ("2h", "90m") or a bare integer number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	var seconds int64
	if _, err := fmt.Sscanf(value, "%d", &seconds); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable or returns a default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
