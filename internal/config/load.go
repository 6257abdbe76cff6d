package config

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/forgeworks/pipeline/internal/errors"
)

// newViperInstance creates a new Viper instance with standard pipeline
// configuration: environment variable prefix (PIPELINE_), key replacer,
// and defaults.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// isConfigNotFoundError returns true if the error is a viper config file
// not found error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var configNotFoundErr viper.ConfigFileNotFoundError
	return stderrors.As(err, &configNotFoundErr)
}

// unmarshalAndValidate unmarshals viper config into Config and validates it.
func unmarshalAndValidate(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// Load reads configuration from all available sources with proper
// precedence. Missing config files are not errors; many projects run on
// defaults alone.
func Load(ctx context.Context) (*Config, error) {
	v := newViperInstance()

	// Global config provides user-wide defaults (lower precedence)
	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}

	// Project config merges over global (higher precedence)
	if err := loadProjectConfig(v); err != nil {
		return nil, err
	}

	cfg, err := unmarshalAndValidate(v)
	if err != nil {
		return nil, err
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Dur("session.crash_threshold", cfg.Session.CrashThreshold).
		Int("session.max_attempts", cfg.Session.MaxAttempts).
		Str("validation.mode", cfg.Validation.Mode).
		Msg("configuration loaded")

	return cfg, nil
}

// LoadWithOverrides loads configuration and applies CLI flag overrides.
// Only non-zero values in overrides are applied, allowing partial
// overrides.
func LoadWithOverrides(ctx context.Context, overrides *Config) (*Config, error) {
	cfg, err := Load(ctx)
	if err != nil {
		return nil, err
	}

	if overrides != nil {
		applyOverrides(cfg, overrides)
	}

	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid configuration after overrides")
	}
	return cfg, nil
}

// LoadFromPaths loads configuration from specific file paths for testing.
// Either path can be empty to skip that level.
func LoadFromPaths(_ context.Context, projectConfigPath, globalConfigPath string) (*Config, error) {
	v := newViperInstance()

	if globalConfigPath != "" {
		v.SetConfigFile(globalConfigPath)
		if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read global config: %s", globalConfigPath)
		}
	}

	if projectConfigPath != "" {
		v.SetConfigFile(projectConfigPath)
		if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to read project config: %s", projectConfigPath)
		}
	}

	return unmarshalAndValidate(v)
}

// loadGlobalConfig attempts to load the global config file
// (~/.pipeline/config.yaml). Missing file or home directory is skipped
// silently.
func loadGlobalConfig(v *viper.Viper) error {
	globalConfigPath, ok := getGlobalConfigPathIfExists()
	if !ok {
		return nil
	}

	v.SetConfigFile(globalConfigPath)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// getGlobalConfigPathIfExists returns the global config path if it exists.
func getGlobalConfigPathIfExists() (string, bool) {
	globalDir, err := GlobalConfigDir()
	if err != nil {
		return "", false
	}

	globalConfigPath := filepath.Join(globalDir, "config.yaml")
	if _, err := os.Stat(globalConfigPath); err != nil {
		return "", false
	}
	return globalConfigPath, true
}

// loadProjectConfig attempts to load the project config file
// (.pipeline/config.yaml). A missing file is skipped silently.
func loadProjectConfig(v *viper.Viper) error {
	projectConfigPath := ProjectConfigPath()
	if !fileExists(projectConfigPath) {
		return nil
	}

	v.SetConfigFile(projectConfigPath)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return errors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// fileExists returns true if the file at path exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// applyOverrides copies non-zero override values onto cfg.
func applyOverrides(cfg, overrides *Config) {
	if overrides.Session.CrashThreshold > 0 {
		cfg.Session.CrashThreshold = overrides.Session.CrashThreshold
	}
	if overrides.Session.MaxAttempts > 0 {
		cfg.Session.MaxAttempts = overrides.Session.MaxAttempts
	}
	if overrides.Storage.Dir != "" {
		cfg.Storage.Dir = overrides.Storage.Dir
	}
	if overrides.Validation.Mode != "" {
		cfg.Validation.Mode = overrides.Validation.Mode
	}
	if overrides.Todo.DefaultPriority != "" {
		cfg.Todo.DefaultPriority = overrides.Todo.DefaultPriority
	}
	if overrides.Logging.Level != "" {
		cfg.Logging.Level = overrides.Logging.Level
	}
}

// setDefaults configures all default values on the Viper instance.
// These defaults match the values from DefaultConfig().
// IMPORTANT: Keys must match the YAML tag names exactly for proper mapping.
func setDefaults(v *viper.Viper) {
	// Session defaults
	v.SetDefault("session.crash_threshold", "5m")
	v.SetDefault("session.max_attempts", 3)

	// Storage defaults
	v.SetDefault("storage.dir", "")

	// Validation defaults
	v.SetDefault("validation.mode", "strict")

	// Todo defaults
	v.SetDefault("todo.default_priority", "P2")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
}

// viperDecoderOption returns the decode hooks used when unmarshaling
// configuration, converting duration strings like "5m" into
// time.Duration values.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}
