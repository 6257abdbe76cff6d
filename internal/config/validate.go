package config

import (
	"github.com/forgeworks/pipeline/internal/errors"
)

// validValidationModes enumerates the accepted schema validation modes.
//
//nolint:gochecknoglobals // Read-only lookup table
var validValidationModes = map[string]bool{
	"strict":  true,
	"lenient": true,
	"draft":   true,
}

// validPriorities enumerates the accepted default priority tiers.
//
//nolint:gochecknoglobals // Read-only lookup table
var validPriorities = map[string]bool{
	"P0": true,
	"P1": true,
	"P2": true,
	"P3": true,
}

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - Session crash threshold must be positive
//   - Session max attempts must be between 1 and 100
//   - Validation mode must be strict, lenient, or draft
//   - Todo default priority must be a known tier
//   - Logging rotation values must be positive
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.Wrap(errors.ErrConfigInvalid, "config is nil")
	}

	if cfg.Session.CrashThreshold <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"session.crash_threshold must be positive, got %s", cfg.Session.CrashThreshold)
	}
	if cfg.Session.MaxAttempts < 1 || cfg.Session.MaxAttempts > 100 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"session.max_attempts must be between 1 and 100, got %d", cfg.Session.MaxAttempts)
	}

	if !validValidationModes[cfg.Validation.Mode] {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"validation.mode must be strict, lenient, or draft, got %q", cfg.Validation.Mode)
	}

	if !validPriorities[cfg.Todo.DefaultPriority] {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"todo.default_priority must be P0, P1, P2, or P3, got %q", cfg.Todo.DefaultPriority)
	}

	if cfg.Logging.MaxSizeMB <= 0 {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"logging.max_size_mb must be positive, got %d", cfg.Logging.MaxSizeMB)
	}
	if cfg.Logging.MaxBackups < 0 || cfg.Logging.MaxAgeDays < 0 {
		return errors.Wrap(errors.ErrConfigInvalid,
			"logging retention values must not be negative")
	}

	return nil
}
