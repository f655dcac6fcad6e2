package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeConfig_Defaults(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv(PrivateKeyEnv, "s-priv-test")

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", config.Log.Level)
	assert.Equal(t, "text", config.Log.Format)
	assert.Equal(t, "s-priv-test", config.API.PrivateKey)
	assert.Equal(t, 30, config.API.TimeoutSeconds)
	assert.Equal(t, 600, config.API.RequestsPerMinute)
	assert.Equal(t, "payledger-go", config.API.UserAgent)
	assert.NotEmpty(t, config.API.BaseURL)
	assert.False(t, config.Sandbox.Enabled)
	assert.Equal(t, "127.0.0.1:8089", config.Sandbox.Listen)
	assert.Equal(t, ",", config.Export.Delimiter)
	assert.Equal(t, ',', config.DelimiterRune())
}

func TestInitializeConfig_EnvironmentVariables(t *testing.T) {
	clearTestEnvVars(t)

	testEnvVars := map[string]string{
		"PAYLEDGER_LOG_LEVEL":               "debug",
		"PAYLEDGER_LOG_FORMAT":              "json",
		"PAYLEDGER_EXPORT_DELIMITER":        ";",
		"PAYLEDGER_API_TIMEOUT_SECONDS":     "5",
		"PAYLEDGER_API_REQUESTS_PER_MINUTE": "0",
		"PAYLEDGER_SANDBOX_ENABLED":         "true",
		"PAYLEDGER_SANDBOX_DB_PATH":         "/tmp/payledger.db",
	}
	for key, value := range testEnvVars {
		t.Setenv(key, value)
	}

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, ';', config.DelimiterRune())
	assert.Equal(t, 5, config.API.TimeoutSeconds)
	assert.Equal(t, 0, config.API.RequestsPerMinute)
	assert.True(t, config.Sandbox.Enabled)
	assert.Equal(t, "/tmp/payledger.db", config.Sandbox.DBPath)
	assert.Empty(t, config.API.PrivateKey, "the sandbox needs no API key")
}

func TestInitializeConfig_PrefixedKeyWins(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("PAYLEDGER_API_PRIVATE_KEY", "s-priv-prefixed")
	t.Setenv(PrivateKeyEnv, "s-priv-plain")

	config, err := InitializeConfig()
	require.NoError(t, err)
	assert.Equal(t, "s-priv-prefixed", config.API.PrivateKey)
}

func TestInitializeConfig_ConfigFile(t *testing.T) {
	clearTestEnvVars(t)

	configFile := filepath.Join(t.TempDir(), "payledger.yaml")
	configContent := `
log:
  level: "warn"
  format: "json"
api:
  base_url: "https://api.example.test/v1/"
  private_key: "s-priv-file"
  requests_per_minute: 120
export:
  delimiter: "|"
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0600))

	config, err := InitializeConfigFromFile(configFile)
	require.NoError(t, err)

	assert.Equal(t, "warn", config.Log.Level)
	assert.Equal(t, "json", config.Log.Format)
	assert.Equal(t, "https://api.example.test/v1/", config.API.BaseURL)
	assert.Equal(t, "s-priv-file", config.API.PrivateKey)
	assert.Equal(t, 120, config.API.RequestsPerMinute)
	assert.Equal(t, "|", config.Export.Delimiter)

	_, err = InitializeConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestInitializeConfig_SearchPathAndPrecedence(t *testing.T) {
	clearTestEnvVars(t)

	tempDir := t.TempDir()
	configContent := `
log:
  level: "warn"
api:
  private_key: "s-priv-file"
  timeout_seconds: 10
`
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0600))

	t.Setenv("PAYLEDGER_LOG_LEVEL", "error")
	t.Setenv(PrivateKeyEnv, "s-priv-env")

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.Chdir(originalDir))
	}()
	require.NoError(t, os.Chdir(tempDir))

	config, err := InitializeConfig()
	require.NoError(t, err)

	assert.Equal(t, "error", config.Log.Level, "env var wins")
	assert.Equal(t, 10, config.API.TimeoutSeconds, "config file value")
	assert.Equal(t, "s-priv-env", config.API.PrivateKey, "env var wins")
}

func validConfig() *Config {
	c := &Config{}
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.API.BaseURL = "https://api.example.test/v1/"
	c.API.PrivateKey = "s-priv-test"
	c.API.TimeoutSeconds = 30
	c.API.RequestsPerMinute = 600
	c.Sandbox.PrivateKey = "s-priv-sandbox"
	c.Export.Delimiter = ","
	return c
}

func TestValidateConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name         string
		modifyConfig func(*Config)
		expectError  string
	}{
		{
			name:         "invalid log level",
			modifyConfig: func(c *Config) { c.Log.Level = "invalid" },
			expectError:  "invalid log level",
		},
		{
			name:         "invalid log format",
			modifyConfig: func(c *Config) { c.Log.Format = "xml" },
			expectError:  "invalid log format",
		},
		{
			name:         "multi character delimiter",
			modifyConfig: func(c *Config) { c.Export.Delimiter = "ab" },
			expectError:  "export delimiter must be a single character",
		},
		{
			name:         "empty delimiter",
			modifyConfig: func(c *Config) { c.Export.Delimiter = "" },
			expectError:  "export delimiter must be a single character",
		},
		{
			name:         "missing private key",
			modifyConfig: func(c *Config) { c.API.PrivateKey = "" },
			expectError:  PrivateKeyEnv + " required",
		},
		{
			name:         "missing base url",
			modifyConfig: func(c *Config) { c.API.BaseURL = "" },
			expectError:  "api.base_url is required",
		},
		{
			name:         "relative base url",
			modifyConfig: func(c *Config) { c.API.BaseURL = "api.example.test/v1" },
			expectError:  "api.base_url: URL must use http or https",
		},
		{
			name:         "timeout out of range",
			modifyConfig: func(c *Config) { c.API.TimeoutSeconds = 0 },
			expectError:  "api.timeout_seconds must be between 1 and 300",
		},
		{
			name:         "negative rate limit",
			modifyConfig: func(c *Config) { c.API.RequestsPerMinute = -1 },
			expectError:  "api.requests_per_minute must be between 0 and 6000",
		},
		{
			name: "sandbox without key",
			modifyConfig: func(c *Config) {
				c.Sandbox.Enabled = true
				c.Sandbox.PrivateKey = ""
			},
			expectError: "sandbox.private_key is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modifyConfig(config)
			err := validateConfig(config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestValidateConfig_SandboxNeedsNoAPIKey(t *testing.T) {
	config := validConfig()
	config.Sandbox.Enabled = true
	config.API.PrivateKey = ""
	config.API.BaseURL = ""
	assert.NoError(t, validateConfig(config))
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"text", "json"} {
		config := validConfig()
		config.Log.Format = format
		assert.NotNil(t, NewLogger(config))
	}
}

func TestLoadEnv(t *testing.T) {
	tempDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, ".env"), []byte("PAYLEDGER_DOTENV_LOADED=loaded\n"), 0600))
	t.Cleanup(func() { _ = os.Unsetenv("PAYLEDGER_DOTENV_LOADED") })

	originalDir, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.Chdir(originalDir))
	}()
	require.NoError(t, os.Chdir(tempDir))

	loaded, err := LoadEnv()
	require.NoError(t, err)
	assert.Equal(t, ".env", loaded)
	assert.Equal(t, "loaded", GetEnv("PAYLEDGER_DOTENV_LOADED", ""))
	assert.Equal(t, "fallback", GetEnv("PAYLEDGER_UNSET_FOR_TEST", "fallback"))
}

// clearTestEnvVars blanks every variable the loader reads. Empty values are
// ignored by viper, and t.Setenv restores the originals afterwards.
func clearTestEnvVars(t *testing.T) {
	envVars := []string{
		"PAYLEDGER_LOG_LEVEL",
		"PAYLEDGER_LOG_FORMAT",
		"PAYLEDGER_API_BASE_URL",
		"PAYLEDGER_API_PRIVATE_KEY",
		"PAYLEDGER_API_TIMEOUT_SECONDS",
		"PAYLEDGER_API_REQUESTS_PER_MINUTE",
		"PAYLEDGER_API_USER_AGENT",
		"PAYLEDGER_SANDBOX_ENABLED",
		"PAYLEDGER_SANDBOX_DB_PATH",
		"PAYLEDGER_SANDBOX_LISTEN",
		"PAYLEDGER_SANDBOX_PRIVATE_KEY",
		"PAYLEDGER_EXPORT_DELIMITER",
		PrivateKeyEnv,
	}
	for _, envVar := range envVars {
		t.Setenv(envVar, "")
	}
}
