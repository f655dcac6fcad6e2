// Package config provides Viper-based hierarchical configuration management
package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"fjacquet/payledger/internal/validation"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PAYLEDGER_LOG_LEVEL.
const EnvPrefix = "PAYLEDGER"

// PrivateKeyEnv holds the API private key without the prefix.
const PrivateKeyEnv = "PAYMENT_API_PRIVATE_KEY"

// Config represents the complete application configuration
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	API struct {
		BaseURL           string `mapstructure:"base_url" yaml:"base_url"`
		PrivateKey        string `mapstructure:"private_key" yaml:"-"` // Never serialize the key
		TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
		RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
		UserAgent         string `mapstructure:"user_agent" yaml:"user_agent"`
	} `mapstructure:"api" yaml:"api"`

	Sandbox struct {
		Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
		DBPath     string `mapstructure:"db_path" yaml:"db_path"`
		Listen     string `mapstructure:"listen" yaml:"listen"`
		PrivateKey string `mapstructure:"private_key" yaml:"-"`
	} `mapstructure:"sandbox" yaml:"sandbox"`

	Export struct {
		Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
	} `mapstructure:"export" yaml:"export"`
}

// DelimiterRune returns the export delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Export.Delimiter)
	return r
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	return load("")
}

// InitializeConfigFromFile loads the given YAML file instead of searching the
// default locations. Defaults and environment overrides still apply.
func InitializeConfigFromFile(path string) (*Config, error) {
	return load(path)
}

func load(file string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.payledger")
		v.AddConfigPath(".payledger")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if file != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. The private key also comes from the unprefixed variable
	if err := v.BindEnv("api.private_key", EnvPrefix+"_API_PRIVATE_KEY", PrivateKeyEnv); err != nil {
		fmt.Printf("Warning: failed to bind %s environment variable: %v\n", PrivateKeyEnv, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("api.base_url", "https://api.payledger.local/v1/")
	v.SetDefault("api.private_key", "")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("api.requests_per_minute", 600)
	v.SetDefault("api.user_agent", "payledger-go")

	v.SetDefault("sandbox.enabled", false)
	v.SetDefault("sandbox.db_path", "")
	v.SetDefault("sandbox.listen", "127.0.0.1:8089")
	v.SetDefault("sandbox.private_key", "s-priv-sandbox")

	v.SetDefault("export.delimiter", ",")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if err := validation.IsValidDelimiter(config.Export.Delimiter); err != nil {
		return fmt.Errorf("export %w", err)
	}

	if !config.Sandbox.Enabled {
		if config.API.PrivateKey == "" {
			return fmt.Errorf("%s required unless the sandbox is enabled", PrivateKeyEnv)
		}
		if config.API.BaseURL == "" {
			return fmt.Errorf("api.base_url is required unless the sandbox is enabled")
		}
		if err := validation.IsValidBaseURL(config.API.BaseURL); err != nil {
			return fmt.Errorf("api.base_url: %w", err)
		}
	}

	if config.API.TimeoutSeconds < 1 || config.API.TimeoutSeconds > 300 {
		return fmt.Errorf("api.timeout_seconds must be between 1 and 300, got: %d", config.API.TimeoutSeconds)
	}

	if config.API.RequestsPerMinute < 0 || config.API.RequestsPerMinute > 6000 {
		return fmt.Errorf("api.requests_per_minute must be between 0 and 6000, got: %d", config.API.RequestsPerMinute)
	}

	if config.Sandbox.Enabled && config.Sandbox.PrivateKey == "" {
		return fmt.Errorf("sandbox.private_key is required when the sandbox is enabled")
	}

	return nil
}
