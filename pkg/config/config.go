// Package config provides unified configuration for deepspeak.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (DEEPSPEAK_ prefix, DEEPSEEK_API_KEY)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/deepspeak/pkg/chat"
	"github.com/rhuss/deepspeak/pkg/deepseek"
)

// Config holds all configuration for deepspeak.
type Config struct {
	API      APIConfig     `yaml:"api"`
	Defaults ChatDefaults  `yaml:"defaults"`
	Logging  LoggingConfig `yaml:"logging"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// APIConfig holds connection settings for the remote API.
type APIConfig struct {
	BaseURL             string        `yaml:"base_url"`              // default: https://api.deepseek.com
	APIKey              string        `yaml:"api_key"`               // optional
	APIKeyFile          string        `yaml:"api_key_file"`          // _file variant for api_key
	Timeout             time.Duration `yaml:"timeout"`               // default: 60s
	SkipMalformedChunks bool          `yaml:"skip_malformed_chunks"` // default: false
}

// ChatDefaults holds the request defaults used by the CLI.
type ChatDefaults struct {
	Model        string   `yaml:"model"`         // default: deepseek-chat
	Temperature  *float64 `yaml:"temperature"`   // unset: API default
	MaxTokens    int      `yaml:"max_tokens"`    // default: 4096
	SystemPrompt string   `yaml:"system_prompt"` // optional
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // default: INFO
	Debug  string `yaml:"debug"`  // comma-separated debug categories
	Format string `yaml:"format"` // "text" or "json", default: text
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: false
	Addr    string `yaml:"addr"`    // default: ":9464"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL: deepseek.DefaultBaseURL,
			Timeout: deepseek.DefaultTimeout,
		},
		Defaults: ChatDefaults{
			Model:     "deepseek-chat",
			MaxTokens: int(deepseek.DefaultMaxTokens),
		},
		Logging: LoggingConfig{
			Level:  "INFO",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9464",
		},
	}
}

// ClientConfig returns the settings for deepseek.New.
func (c *Config) ClientConfig() deepseek.Config {
	return deepseek.Config{
		BaseURL:             c.API.BaseURL,
		APIKey:              c.API.APIKey,
		Timeout:             c.API.Timeout,
		SkipMalformedChunks: c.API.SkipMalformedChunks,
		DefaultModel:        c.Defaults.Model,
	}
}

// ChatOptions returns request options built from the defaults section.
func (c *Config) ChatOptions() *chat.Options {
	opts := &chat.Options{ModelID: c.Defaults.Model}
	if c.Defaults.Temperature != nil {
		t := *c.Defaults.Temperature
		opts.Temperature = &t
	}
	if c.Defaults.MaxTokens > 0 {
		n := c.Defaults.MaxTokens
		opts.MaxOutputTokens = &n
	}
	return opts
}
