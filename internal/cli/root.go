// Package cli provides the command-line interface for the pipeline.
package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/forgeworks/pipeline/internal/config"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// BuildInfo contains version information set at build time via ldflags.
type BuildInfo struct {
	// Version is the semantic version (e.g., "1.0.0").
	Version string
	// Commit is the git commit hash.
	Commit string
	// Date is the build date.
	Date string
}

// globalLogger stores the initialized logger for use by subcommands.
// This is set during PersistentPreRunE and should be accessed via GetLogger.
var (
	globalLogger   zerolog.Logger //nolint:gochecknoglobals // CLI logger requires global access
	globalLoggerMu sync.RWMutex   //nolint:gochecknoglobals // Protects globalLogger
)

// GetLogger returns the initialized logger for use by subcommands.
//
// This function MUST only be called after the root command's
// PersistentPreRunE has executed; before that it returns a zero-value
// logger that discards all output. Safe for concurrent use.
func GetLogger() zerolog.Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// newRootCmd creates and returns the root command for the pipeline CLI.
func newRootCmd(flags *GlobalFlags, info BuildInfo) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Pipeline - artifact coordination for multi-stage authoring",
		Long: `Pipeline coordinates typed artifacts produced by a multi-stage authoring
workflow: requirements, flows, data models, journeys, task sets, decisions,
and scaffolds.

It validates documents before they are stored, verifies cross-references
between artifact kinds, computes sync status and change impact across the
dependency graph, tracks work sessions with crash recovery, and manages
standalone todo findings.`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := BindGlobalFlags(v, cmd); err != nil {
				return fmt.Errorf("failed to bind flags: %w", err)
			}

			if !IsValidOutputFormat(flags.Output) {
				return fmt.Errorf("%w: output %q must be one of %v",
					pipelineerrors.ErrInvalidArgument, flags.Output, ValidOutputFormats())
			}

			logCfg := config.DefaultConfig().Logging
			if cfg, err := config.Load(cmd.Context()); err == nil {
				logCfg = cfg.Logging
			}

			globalLoggerMu.Lock()
			globalLogger = InitLogger(flags.Verbose, flags.Quiet, logCfg)
			globalLoggerMu.Unlock()

			return nil
		},
		// SilenceUsage prevents printing usage on error
		SilenceUsage: true,
	}

	AddGlobalFlags(cmd, flags)

	AddInitCommand(cmd, flags)
	AddArtifactCommand(cmd, flags)
	AddCheckCommand(cmd, flags)
	AddStatusCommand(cmd, flags)
	AddImpactCommand(cmd, flags)
	AddPropagateCommand(cmd, flags)
	AddResolveCommand(cmd, flags)
	AddSessionCommand(cmd, flags)
	AddTaskCommand(cmd, flags)
	AddTodoCommand(cmd, flags)

	return cmd
}

// formatVersion creates the version string from build info.
func formatVersion(info BuildInfo) string {
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "none"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.Date)
}

// Execute runs the root command with the provided context and build info.
func Execute(ctx context.Context, info BuildInfo) error {
	flags := &GlobalFlags{}
	//nolint:contextcheck // Cobra command pattern uses cmd.Context() internally
	cmd := newRootCmd(flags, info)
	defer CloseLogFile()
	return cmd.ExecuteContext(ctx)
}
