// Package config also loads .env files and turns the loaded configuration
// into a logger.
package config

import (
	"os"
	"path/filepath"

	"fjacquet/payledger/internal/logging"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from the first .env file found in the
// current or parent directory. Variables already set win over the file. It
// returns the file it loaded, or "" when there was none.
func LoadEnv() (string, error) {
	for _, candidate := range []string{".env", filepath.Join("..", ".env")} {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return candidate, err
		}
		return candidate, nil
	}
	return "", nil
}

// GetEnv retrieves an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	return value
}

// NewLogger builds the application logger from the log section.
func NewLogger(config *Config) logging.Logger {
	return logging.NewLogrusAdapter(config.Log.Level, config.Log.Format)
}
