package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	envPrefix = "DATALENS"
	dirName   = ".datalens"
)

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`
	// BaseURL overrides the hosted provider endpoint (proxies, gateways).
	BaseURL string `mapstructure:"base_url" yaml:"base_url,omitempty"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Export
	ChromePath       string `mapstructure:"chrome_path" yaml:"chrome_path,omitempty"`
	ExportTimeoutSec int    `mapstructure:"export_timeout_sec" yaml:"export_timeout_sec"`

	// Server and logging
	ServerAddr     string  `mapstructure:"server_addr" yaml:"server_addr"`
	MaxUploadMB    int     `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	LogMode        string  `mapstructure:"log_mode" yaml:"log_mode"`
	BudgetLimitUSD float64 `mapstructure:"budget_limit_usd" yaml:"budget_limit_usd"`
}

// Dir returns ~/.datalens.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// LoadDotEnv loads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.datalens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_key", "")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("default_model", "")
	v.SetDefault("max_tokens", 4000)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("base_url", "")
	v.SetDefault("http_timeout_sec", 120)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 300)
	v.SetDefault("chrome_path", "")
	v.SetDefault("export_timeout_sec", 60)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("max_upload_mb", 32)
	v.SetDefault("log_mode", "production")
	v.SetDefault("budget_limit_usd", 0.0)
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.DefaultProvider = normalizeProvider(c.DefaultProvider)
	return &c, nil
}

// APIKeyFor resolves the key for a hosted provider: config/DATALENS_API_KEY
// first, then the provider's conventional variable.
func (c *Global) APIKeyFor(provider string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	switch normalizeProvider(provider) {
	case "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "openrouter":
		return os.Getenv("OPENROUTER_API_KEY")
	}
	return ""
}

// HTTPTimeout returns the request timeout for provider.
func (c *Global) HTTPTimeout(provider string) time.Duration {
	if normalizeProvider(provider) == "ollama" && c.OllamaTimeoutSec > 0 {
		return time.Duration(c.OllamaTimeoutSec) * time.Second
	}
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// Set assigns one key from its string form.
func (c *Global) Set(key, val string) error {
	switch key {
	case "api_key":
		c.APIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		p := normalizeProvider(val)
		if p == "" {
			return fmt.Errorf("invalid default_provider: %s (use openrouter, anthropic or ollama)", val)
		}
		c.DefaultProvider = p
	case "base_url":
		c.BaseURL = val
	case "ollama_host":
		c.OllamaHost = val
	case "chrome_path":
		c.ChromePath = val
	case "server_addr":
		c.ServerAddr = val
	case "log_mode":
		c.LogMode = val
	case "max_tokens", "http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms",
		"retry_max_delay_ms", "ollama_timeout_sec", "export_timeout_sec", "max_upload_mb":
		i, err := strconv.Atoi(val)
		if err != nil || i < 0 {
			return fmt.Errorf("invalid non-negative int for %s: %q", key, val)
		}
		*c.intField(key) = i
	case "temperature", "budget_limit_usd":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid non-negative number for %s: %q", key, val)
		}
		if key == "temperature" {
			c.Temperature = f
		} else {
			c.BudgetLimitUSD = f
		}
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return nil
}

func (c *Global) intField(key string) *int {
	switch key {
	case "max_tokens":
		return &c.MaxTokens
	case "http_timeout_sec":
		return &c.HTTPTimeoutSec
	case "retry_max_attempts":
		return &c.RetryMaxAttempts
	case "retry_base_delay_ms":
		return &c.RetryBaseDelayMs
	case "retry_max_delay_ms":
		return &c.RetryMaxDelayMs
	case "ollama_timeout_sec":
		return &c.OllamaTimeoutSec
	case "export_timeout_sec":
		return &c.ExportTimeoutSec
	default:
		return &c.MaxUploadMB
	}
}

func normalizeProvider(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "openrouter":
		return "openrouter"
	case "anthropic", "claude":
		return "anthropic"
	case "ollama", "local":
		return "ollama"
	}
	return ""
}
