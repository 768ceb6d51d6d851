// Package config loads service configuration from the environment and
// watches the layout tuning file for runtime changes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Inference service
	PredictionURL      string
	PredictionInterval time.Duration

	// WebSocket feed
	MaxFeedConnections int

	// Layout tuning file, optional; watched for changes when set
	TuningPath string

	// Logging
	LogLevel string

	// Authentication; an empty secret disables auth entirely
	JWTSecret string
	JWTIssuer string

	// CORS
	CORSOrigins []string

	// Startup behavior
	LoadFixtures bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		PredictionURL:      getEnv("PREDICTION_URL", ""),
		PredictionInterval: getEnvDuration("PREDICTION_INTERVAL", 5*time.Minute),

		MaxFeedConnections: getEnvInt("MAX_FEED_CONNECTIONS", 1000),

		TuningPath: getEnv("LAYOUT_TUNING_PATH", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "dealgraph"),

		CORSOrigins: []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},

		LoadFixtures: getEnvBool("LOAD_FIXTURES", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
	}
	if c.MaxFeedConnections <= 0 {
		return fmt.Errorf("MAX_FEED_CONNECTIONS must be positive")
	}
	if c.PredictionInterval < 0 {
		return fmt.Errorf("PREDICTION_INTERVAL cannot be negative")
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
