package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", c.DefaultProvider)
	assert.Equal(t, 4000, c.MaxTokens)
	assert.Equal(t, ":8080", c.ServerAddr)
	assert.Equal(t, 3, c.RetryMaxAttempts)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := &Global{DefaultProvider: "anthropic", DefaultModel: "claude-3-5-sonnet-latest", MaxTokens: 2000, ServerAddr: ":9090"}
	require.NoError(t, Save(c, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", got.DefaultProvider)
	assert.Equal(t, "claude-3-5-sonnet-latest", got.DefaultModel)
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, ":9090", got.ServerAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_tokens: 1000\n"), 0o600))
	t.Setenv("DATALENS_MAX_TOKENS", "1234")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1234, c.MaxTokens)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	c := &Global{}
	require.NoError(t, c.Set("default_provider", "Claude"))
	assert.Equal(t, "anthropic", c.DefaultProvider)
	require.NoError(t, c.Set("retry_max_delay_ms", "2500"))
	assert.Equal(t, 2500, c.RetryMaxDelayMs)
	require.NoError(t, c.Set("max_upload_mb", "8"))
	assert.Equal(t, 8, c.MaxUploadMB)
	require.NoError(t, c.Set("budget_limit_usd", "0.25"))
	assert.Equal(t, 0.25, c.BudgetLimitUSD)

	assert.Error(t, c.Set("default_provider", "gpt"))
	assert.Error(t, c.Set("max_tokens", "-1"))
	assert.Error(t, c.Set("temperature", "warm"))
	assert.Error(t, c.Set("projects_dir", "x"))
}

func TestAPIKeyFor(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "or-key")
	t.Setenv("ANTHROPIC_API_KEY", "ant-key")
	c := &Global{}
	assert.Equal(t, "or-key", c.APIKeyFor("openrouter"))
	assert.Equal(t, "ant-key", c.APIKeyFor("anthropic"))
	assert.Equal(t, "", c.APIKeyFor("ollama"))

	c.APIKey = "configured"
	assert.Equal(t, "configured", c.APIKeyFor("anthropic"))
}

func TestHTTPTimeout(t *testing.T) {
	c := &Global{HTTPTimeoutSec: 30, OllamaTimeoutSec: 300}
	assert.Equal(t, 30*time.Second, c.HTTPTimeout("openrouter"))
	assert.Equal(t, 300*time.Second, c.HTTPTimeout("local"))
}

func TestLoadDotEnvKeepsExistingEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DATALENS_TEST_FROM_FILE=file\nDATALENS_TEST_PRESET=file\n"), 0o600))
	t.Setenv("DATALENS_TEST_PRESET", "shell")
	t.Setenv("DATALENS_TEST_FROM_FILE", "")
	os.Unsetenv("DATALENS_TEST_FROM_FILE")

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "file", os.Getenv("DATALENS_TEST_FROM_FILE"))
	assert.Equal(t, "shell", os.Getenv("DATALENS_TEST_PRESET"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
