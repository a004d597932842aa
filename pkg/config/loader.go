package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/deepspeak/pkg/debug"
)

// Environment variables read by Load.
const (
	EnvConfig   = "DEEPSPEAK_CONFIG"
	EnvAPIKey   = "DEEPSEEK_API_KEY"
	EnvBaseURL  = "DEEPSPEAK_BASE_URL"
	EnvModel    = "DEEPSPEAK_MODEL"
	EnvTimeout  = "DEEPSPEAK_TIMEOUT"
	EnvLogLevel = "DEEPSPEAK_LOG_LEVEL"
	EnvDebug    = "DEEPSPEAK_DEBUG"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, DEEPSPEAK_CONFIG env, ./deepspeak.yaml,
//     $HOME/.config/deepspeak/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "loaded config file", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile returns the first config file found, in order: the
// explicit path, DEEPSPEAK_CONFIG, ./deepspeak.yaml and the user config
// directory. Returns "" if none exists.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		return envPath
	}

	candidates := []string{"deepspeak.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "deepspeak", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile parses a YAML file into cfg. Fields absent from the file keep
// their current values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps environment variables onto config fields.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Defaults.Model = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTimeout, err)
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		cfg.Logging.Debug = v
	}
	return nil
}

// parseTimeout accepts a Go duration ("90s") or a plain number of seconds.
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// resolveFileReferences fills value fields from their _file variants when
// the value itself is empty.
func resolveFileReferences(cfg *Config) error {
	if cfg.API.APIKeyFile != "" && cfg.API.APIKey == "" {
		val, err := readSecretFile(cfg.API.APIKeyFile)
		if err != nil {
			return fmt.Errorf("api.api_key_file: %w", err)
		}
		cfg.API.APIKey = val
	}
	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
