// Package errors provides centralized error handling for the pipeline core.
//
// This package defines sentinel errors used for programmatic error
// categorization throughout the module. All error types can be checked
// using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrSchemaValidation indicates a document failed structural or
	// identifier validation. Recoverable by re-authoring the document.
	ErrSchemaValidation = errors.New("schema validation failed")

	// ErrReferenceNotFound indicates a downstream artifact references an
	// identifier that does not exist in the current upstream artifact.
	// Recoverable through conflict resolution.
	ErrReferenceNotFound = errors.New("referenced identifier not found")

	// ErrSyncConflict indicates propagation cannot proceed automatically
	// and requires an explicit resolution choice.
	ErrSyncConflict = errors.New("sync conflict requires resolution")

	// ErrSessionActive indicates an attempt to start a session while one
	// is already active. The caller must resume or force-end it first.
	ErrSessionActive = errors.New("session already active")

	// ErrStateCorrupted indicates persisted state failed to parse or is
	// missing expected fields. Fatal for the current process: callers
	// must halt rather than attempt partial recovery.
	ErrStateCorrupted = errors.New("persisted state corrupted")

	// ErrSessionNotFound indicates no session exists with the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNoActiveSession indicates an operation requires an active
	// session but none exists.
	ErrNoActiveSession = errors.New("no active session")

	// ErrTaskNotFound indicates a task ID is unknown to the session log.
	ErrTaskNotFound = errors.New("task not found")

	// ErrInvalidTransition indicates an attempt to make an invalid state
	// transition for a session, task, or todo.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrMaxAttemptsExceeded indicates a failed task has exhausted its
	// retry budget.
	ErrMaxAttemptsExceeded = errors.New("maximum retry attempts exceeded")

	// ErrArtifactNotFound indicates no artifact document exists for the
	// requested kind.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrUnknownKind indicates an artifact kind outside the pipeline's
	// configured dependency graph.
	ErrUnknownKind = errors.New("unknown artifact kind")

	// ErrTodoNotFound indicates no todo record exists with the given ID.
	ErrTodoNotFound = errors.New("todo not found")

	// ErrResolutionNotesRequired indicates a resolve call without notes.
	ErrResolutionNotesRequired = errors.New("resolution notes required")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrPathTraversal indicates an attempt to use path traversal in a filename.
	ErrPathTraversal = errors.New("path traversal detected")

	// ErrLockTimeout indicates a file lock could not be acquired within
	// the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")
)

// FieldError describes a single field-level validation failure: which field
// failed, why, and the offending value. A slice of these is carried by
// ValidationError so callers can act on failures without inspecting
// internals.
type FieldError struct {
	// Path is the JSON path of the failing field (e.g. "features[2].id").
	Path string `json:"path"`

	// Reason is a human-readable explanation of the failure.
	Reason string `json:"reason"`

	// Value is the offending value, rendered as a string.
	Value string `json:"value,omitempty"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("%s: %s (got %q)", e.Path, e.Reason, e.Value)
}

// ValidationError aggregates the field-level errors from validating one
// document. It wraps ErrSchemaValidation so errors.Is() checks work.
type ValidationError struct {
	// Kind names the artifact kind that was validated.
	Kind string

	// Fields holds one entry per failing field.
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s document failed validation (%d errors)", e.Kind, len(e.Fields))
	for _, f := range e.Fields {
		b.WriteString("\n  - ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap returns ErrSchemaValidation so callers can categorize with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrSchemaValidation
}
