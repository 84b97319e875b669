// Package config loads and validates the gateway configuration.
//
// DESIGN: One YAML file describes the server, the providers the gateway can
// route to, and the limits/metrics settings. API keys may reference
// environment variables with ${VAR} so config files stay committable.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full gateway configuration.
type Config struct {
	Server    ServerConfig              `yaml:"server"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Limits    LimitsConfig              `yaml:"limits"`
	Metrics   MetricsConfig             `yaml:"metrics"`
	LogLevel  string                    `yaml:"log_level"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ProviderConfig describes one upstream provider as written in YAML.
// The runtime capability descriptor lives in internal/provider; this type
// only carries what the file says.
type ProviderConfig struct {
	BaseURL          string            `yaml:"base_url"`
	APIKeys          []string          `yaml:"api_keys"`
	Passthrough      bool              `yaml:"passthrough"`
	AnthropicFormat  bool              `yaml:"anthropic_format"`
	SanitizeTools    bool              `yaml:"sanitize_tool_names"`
	Models           []string          `yaml:"models"`
	ModelAliases     map[string]string `yaml:"model_aliases"`
	Default          bool              `yaml:"default"`
	AuthHeader       string            `yaml:"auth_header"`
	TimeoutOverride  time.Duration     `yaml:"timeout"`
	ExtraHeaders     map[string]string `yaml:"extra_headers"`
	DisableStreaming bool              `yaml:"disable_streaming"`
}

// LimitsConfig bounds outbound request parameters.
type LimitsConfig struct {
	MinTokens int `yaml:"min_tokens"`
	MaxTokens int `yaml:"max_tokens"`
}

// MetricsConfig controls the request-metrics tracker.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} references with environment values.
// Unset variables expand to the empty string, matching os.ExpandEnv.
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}

// Load reads, expands, and validates a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	for name, p := range cfg.Providers {
		for i, k := range p.APIKeys {
			p.APIKeys[i] = expandEnv(k)
		}
		p.BaseURL = expandEnv(p.BaseURL)
		cfg.Providers[name] = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultServerReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultServerWriteTimeout
	}
	if c.Limits.MinTokens == 0 {
		c.Limits.MinTokens = DefaultMinTokensLimit
	}
	if c.Limits.MaxTokens == 0 {
		c.Limits.MaxTokens = DefaultMaxTokensLimit
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("config: at least one provider is required")
	}
	if c.Limits.MinTokens > c.Limits.MaxTokens {
		return fmt.Errorf("config: min_tokens %d exceeds max_tokens %d", c.Limits.MinTokens, c.Limits.MaxTokens)
	}
	defaults := 0
	for name, p := range c.Providers {
		if p.BaseURL == "" {
			return fmt.Errorf("config: provider %q has no base_url", name)
		}
		if p.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("config: more than one provider marked default")
	}
	return nil
}

// Runtime returns the request-scoped settings derived from this config.
func (c *Config) Runtime() *Runtime {
	return &Runtime{
		MinTokensLimit:    c.Limits.MinTokens,
		MaxTokensLimit:    c.Limits.MaxTokens,
		LogRequestMetrics: c.Metrics.Enabled,
		RequestTimeout:    DefaultRequestTimeout,
	}
}
