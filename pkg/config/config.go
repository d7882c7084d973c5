// Package config provides configuration management for the finet ledger.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Database DatabaseConfig
	Currency CurrencyConfig
	Debug    bool
}

// DatabaseConfig represents the SQLite database configuration.
type DatabaseConfig struct {
	Path string
}

// CurrencyConfig represents currency-related configuration.
type CurrencyConfig struct {
	// DefaultsFile points at a YAML file seeding the base currency,
	// exchange rates and display symbols on first run.
	DefaultsFile string
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	config := &Config{
		Database: DatabaseConfig{
			Path: getEnvOrDefault("FINET_DB_PATH", "finet.db"),
		},
		Currency: CurrencyConfig{
			DefaultsFile: getEnvOrDefault("FINET_CURRENCY_DEFAULTS", "config/currencies.yaml"),
		},
		Debug: os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate validates the configuration.
// It checks if all required fields are set.
func (c *Config) Validate() error {
	var missing []string

	if c.Database.Path == "" {
		missing = append(missing, "database.path")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
