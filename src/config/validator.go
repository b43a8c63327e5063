package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates configuration values using go-playground/validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the custom tags registered.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterValidation("loglevel", validateLogLevel)
	v.RegisterValidation("logformat", validateLogFormat)
	v.RegisterValidation("abs_or_rel_path", validateAbsOrRelPath)
	return &Validator{validate: v}
}

// Validate validates a complete configuration.
func (v *Validator) Validate(config *Config) error {
	err := v.validate.Struct(config)
	if err == nil {
		return nil
	}
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrors {
			return ValidationError{
				Field:   e.Field(),
				Message: fmt.Sprintf("validation failed on tag '%s' with value '%v'", e.Tag(), e.Value()),
				Value:   e.Value(),
			}
		}
	}
	return err
}

func validateLogLevel(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "", "debug", "info", "warn", "error":
		return true
	}
	return false
}

func validateLogFormat(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "", "text", "json":
		return true
	}
	return false
}

func validateAbsOrRelPath(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return true
	}
	if _, err := url.ParseRequestURI(path); err == nil && strings.Contains(path, "://") {
		return false
	}
	return filepath.IsAbs(path) || !strings.HasPrefix(path, "~")
}
