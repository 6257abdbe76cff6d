package config

import (
	"github.com/forgeworks/pipeline/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// These defaults are used as the base layer that can be overridden by
// config files, environment variables, and CLI flags.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			// CrashThreshold: 5 minutes tolerates slow tasks between
			// checkpoints while still catching dead processes quickly.
			CrashThreshold: constants.DefaultCrashThreshold,

			// MaxAttempts: 3 retries before a task needs human attention.
			MaxAttempts: constants.DefaultMaxAttempts,
		},
		Storage: StorageConfig{
			// Dir: empty means .pipeline in the working directory.
			Dir: "",
		},
		Validation: ValidationConfig{
			// Mode: strict by default. Mutations are gated hard unless a
			// project opts into lenient or draft authoring.
			Mode: "strict",
		},
		Todo: TodoConfig{
			DefaultPriority: "P2",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}
