package config

import (
	"errors"
	"os"
	"time"
)

// Config is the server configuration, read from the environment.
type Config struct {
	ServerPort           string
	DirectoryDatabaseURL string
	BackendBDatabaseURL  string
	RedisURL             string
	Surreal              SurrealConfig
	JWTSecret            string
	JWTExpiry            time.Duration
	IdempotencyTTL       time.Duration
	RequestTimeout       time.Duration
	LogLevel             string
}

// SurrealConfig locates backend A.
type SurrealConfig struct {
	URL       string
	Namespace string
	Database  string
	User      string
	Password  string
}

func LoadConfig() (*Config, error) {
	ttl, err := time.ParseDuration(getEnv("IDEMPOTENCY_TTL", "24h"))
	if err != nil {
		return nil, errors.New("invalid IDEMPOTENCY_TTL format")
	}
	jwtExpiry, err := time.ParseDuration(getEnv("JWT_EXPIRY", "720h"))
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}
	timeout, err := time.ParseDuration(getEnv("REQUEST_TIMEOUT", "15s"))
	if err != nil {
		return nil, errors.New("invalid REQUEST_TIMEOUT format")
	}

	cfg := &Config{
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		DirectoryDatabaseURL: os.Getenv("DIRECTORY_DATABASE_URL"),
		BackendBDatabaseURL:  os.Getenv("BACKEND_B_DATABASE_URL"),
		RedisURL:             os.Getenv("REDIS_URL"),
		Surreal: SurrealConfig{
			URL:       getEnv("SURREAL_URL", "ws://localhost:8000"),
			Namespace: getEnv("SURREAL_NAMESPACE", "ledgersync"),
			Database:  getEnv("SURREAL_DATABASE", "ledgersync"),
			User:      getEnv("SURREAL_USER", "root"),
			Password:  os.Getenv("SURREAL_PASSWORD"),
		},
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpiry:      jwtExpiry,
		IdempotencyTTL: ttl,
		RequestTimeout: timeout,
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if cfg.DirectoryDatabaseURL == "" {
		return nil, errors.New("DIRECTORY_DATABASE_URL is required")
	}
	if cfg.BackendBDatabaseURL == "" {
		return nil, errors.New("BACKEND_B_DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.Surreal.Password == "" {
		return nil, errors.New("SURREAL_PASSWORD is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
