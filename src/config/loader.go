package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// Loader loads and merges configuration from the precedence chain.
type Loader struct {
	precedence Precedence
	validator  *Validator
}

// NewLoader creates a loader for the given precedence chain.
func NewLoader(precedence Precedence) *Loader {
	return &Loader{
		precedence: precedence,
		validator:  NewValidator(),
	}
}

// Load reads every configured file in precedence order, merges them over
// the defaults, applies environment overrides, and validates the result.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	paths := []string{
		l.precedence.SystemConfig,
		l.precedence.UserConfig,
		l.precedence.LocalConfig,
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		cfg, err := l.loadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		config = mergeConfigs(config, cfg)
	}

	if l.precedence.EnvironmentPrefix != "" {
		applyEnvironmentOverrides(config, l.precedence.EnvironmentPrefix)
	}

	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return config, nil
}

func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return &config, nil
}

// SaveFile validates the config and writes it as indented JSON.
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// mergeConfigs merges two configurations, the second taking precedence.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Listen != "" {
		result.Listen = override.Listen
	}
	if override.Database != "" {
		result.Database = override.Database
	}
	if override.FreeTier.BaseURL != "" {
		result.FreeTier.BaseURL = override.FreeTier.BaseURL
	}
	if override.FreeTier.APIKey != "" {
		result.FreeTier.APIKey = override.FreeTier.APIKey
	}
	if override.FreeTier.Model != "" {
		result.FreeTier.Model = override.FreeTier.Model
	}
	if override.LogLevel != "" {
		result.LogLevel = override.LogLevel
	}
	if override.LogFormat != "" {
		result.LogFormat = override.LogFormat
	}
	return &result
}

func applyEnvironmentOverrides(config *Config, prefix string) {
	if listen := os.Getenv(prefix + "_LISTEN"); listen != "" {
		config.Listen = listen
	}
	if database := os.Getenv(prefix + "_DATABASE"); database != "" {
		config.Database = database
	}
	if apiKey := os.Getenv(prefix + "_API_KEY"); apiKey != "" {
		config.FreeTier.APIKey = apiKey
	}
	// OPENROUTER_API_KEY works too, for people who already export it.
	if config.FreeTier.APIKey == "" {
		if apiKey := os.Getenv("OPENROUTER_API_KEY"); apiKey != "" {
			config.FreeTier.APIKey = apiKey
		}
	}
	if baseURL := os.Getenv(prefix + "_BASE_URL"); baseURL != "" {
		config.FreeTier.BaseURL = baseURL
	}
	if model := os.Getenv(prefix + "_MODEL"); model != "" {
		config.FreeTier.Model = model
	}
	if level := os.Getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if format := os.Getenv(prefix + "_LOG_FORMAT"); format != "" {
		config.LogFormat = format
	}
}

// GetConfigPaths returns the standard precedence chain using XDG user paths.
func GetConfigPaths() Precedence {
	return Precedence{
		SystemConfig:      "/etc/ygui/config.json",
		UserConfig:        filepath.Join(xdg.ConfigHome, "ygui", "config.json"),
		LocalConfig:       filepath.Join(".ygui", "config.json"),
		EnvironmentPrefix: "YGUI",
	}
}
