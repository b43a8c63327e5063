// Package config loads application configuration from JSON files merged in
// precedence order, with environment variable overrides on top.
package config

import "fmt"

// Config is the application configuration.
type Config struct {
	// Listen is the HTTP listen address for the chat server.
	Listen string `json:"listen" validate:"omitempty"`

	// Database is the sqlite database path.
	Database string `json:"database" validate:"omitempty,abs_or_rel_path"`

	// FreeTier is the shared fallback provider endpoint used by bots that
	// have no base_url/api_key of their own.
	FreeTier FreeTierConfig `json:"free_tier"`

	LogLevel  string `json:"log_level" validate:"omitempty,loglevel"`
	LogFormat string `json:"log_format" validate:"omitempty,logformat"`
}

// FreeTierConfig is the shared provider endpoint for bots with no key.
type FreeTierConfig struct {
	BaseURL string `json:"base_url" validate:"omitempty,url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
}

// Precedence lists configuration file paths from lowest to highest priority.
type Precedence struct {
	SystemConfig      string
	UserConfig        string
	LocalConfig       string
	EnvironmentPrefix string
}

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
	Value   any
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %s: %s", e.Field, e.Message)
}
