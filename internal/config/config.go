// Package config provides configuration management for the pipeline with
// layered precedence.
//
// Configuration sources are loaded in the following order (highest
// precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (PIPELINE_* prefix)
//  3. Project config (.pipeline/config.yaml)
//  4. Global config (~/.pipeline/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for the pipeline.
type Config struct {
	// Session contains settings for session lifecycle and crash detection.
	Session SessionConfig `yaml:"session" mapstructure:"session"`

	// Storage contains settings for state file locations.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Validation contains settings for artifact schema validation.
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`

	// Todo contains settings for the todo lifecycle manager.
	Todo TodoConfig `yaml:"todo" mapstructure:"todo"`

	// Logging contains settings for structured log output.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// SessionConfig contains settings for session lifecycle management.
type SessionConfig struct {
	// CrashThreshold is how stale an active session's checkpoint may be
	// before crash detection declares the session dead.
	// Default: 5 minutes
	CrashThreshold time.Duration `yaml:"crash_threshold" mapstructure:"crash_threshold"`

	// MaxAttempts is how many times a task may enter in_progress before
	// further retries are refused.
	// Default: 3
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// StorageConfig contains settings for state file locations.
type StorageConfig struct {
	// Dir overrides the project state directory.
	// Default: .pipeline in the working directory.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ValidationConfig contains settings for artifact schema validation.
type ValidationConfig struct {
	// Mode is the default validation strictness: strict, lenient, or draft.
	// Default: "strict"
	Mode string `yaml:"mode" mapstructure:"mode"`
}

// TodoConfig contains settings for the todo lifecycle manager.
type TodoConfig struct {
	// DefaultPriority is the tier assigned when a finding is created
	// without one.
	// Default: "P2"
	DefaultPriority string `yaml:"default_priority" mapstructure:"default_priority"`
}

// LoggingConfig contains settings for structured log output.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level" mapstructure:"level"`

	// MaxSizeMB is the size a log file may reach before rotation.
	// Default: 10
	MaxSizeMB int `yaml:"max_size_mb" mapstructure:"max_size_mb"`

	// MaxBackups is how many rotated log files to keep.
	// Default: 5
	MaxBackups int `yaml:"max_backups" mapstructure:"max_backups"`

	// MaxAgeDays is how long rotated log files are kept.
	// Default: 30
	MaxAgeDays int `yaml:"max_age_days" mapstructure:"max_age_days"`
}
