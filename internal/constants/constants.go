// Package constants provides centralized constant values used throughout the
// pipeline core. This package is the single source of truth for all shared
// constants and MUST NOT import any other internal packages.
package constants

import "time"

// File names used for state persistence.
const (
	// SessionLogFileName is the name of the JSON file that stores the
	// append-only session log plus the shared task status map.
	SessionLogFileName = "sessions.json"

	// HistoryFileName is the name of the human-readable change history file.
	// One entry is appended per completed session.
	HistoryFileName = "history.md"

	// CountersFileName is the name of the JSON file holding per-category
	// todo identifier counters. Counters only ever increase so that
	// identifiers are never reused.
	CountersFileName = "counters.json"
)

// Directory names used for organizing on-disk state.
const (
	// PipelineHome is the hidden directory name where all pipeline state
	// lives. It is created in the project root.
	PipelineHome = ".pipeline"

	// ArtifactsDir is the directory name where artifact documents are
	// stored, one JSON file per artifact kind.
	ArtifactsDir = "artifacts"

	// TodosDir is the directory name where todo records are stored, one
	// YAML file per todo, bucketed by priority tier and resolution.
	TodosDir = "todos"

	// ResolvedBucket is the bucket name for todos in a terminal status.
	ResolvedBucket = "resolved"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// LogFileName is the name of the rotating JSON log file.
	LogFileName = "pipeline.log"
)

// Configuration file names.
const (
	// GlobalConfigName is the name of the global configuration file,
	// located in ~/.pipeline/.
	GlobalConfigName = "config.yaml"

	// ProjectConfigName is the name of the project configuration file,
	// located in .pipeline/.
	ProjectConfigName = "config.yaml"
)

// Session policy defaults. Both values are configurable; see internal/config.
const (
	// DefaultCrashThreshold is how stale an active session's checkpoint
	// must be before it is classified as crashed. Applied only at
	// process start, never during execution.
	DefaultCrashThreshold = 5 * time.Minute

	// DefaultMaxAttempts caps how many times a failed task may re-enter
	// in_progress. Blocked tasks do not consume attempts.
	DefaultMaxAttempts = 3
)

// Schema version constants for forward-compatible migrations.
const (
	// SessionLogSchemaVersion is the current schema version of the
	// session log document.
	SessionLogSchemaVersion = 1

	// ArtifactSchemaVersion is the current schema version of persisted
	// artifact documents.
	ArtifactSchemaVersion = 1
)
