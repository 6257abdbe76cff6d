// Package session provides session and task lifecycle management for the
// pipeline executor.
//
// This file implements the two state machines: the session lifecycle and
// the per-task lifecycle. Every transition is table-driven so invalid
// transitions fail loudly instead of corrupting the log.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors,
//     internal/clock, internal/ctxutil, std lib
//   - MUST NOT import: internal/cli
package session

import (
	"github.com/forgeworks/pipeline/internal/constants"
)

// ValidSessionTransitions defines all allowed session state transitions.
// Format: from_status -> []to_statuses
//
// The session lifecycle:
//
//	Active → Completed, Crashed, Paused
//
// Every end state is terminal. A fresh session is always created to resume
// work; the crashed one stays in the log as history.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidSessionTransitions = map[constants.SessionStatus][]constants.SessionStatus{
	constants.SessionStatusActive: {
		constants.SessionStatusCompleted,
		constants.SessionStatusCrashed,
		constants.SessionStatusPaused,
	},
}

// ValidTaskTransitions defines all allowed task state transitions.
// Format: from_status -> []to_statuses
//
// The task lifecycle:
//
//	Pending → InProgress, Blocked
//	InProgress → Completed, Failed, Blocked
//	Failed → InProgress (retry, bounded by the attempt cap)
//	Blocked → InProgress
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTaskTransitions = map[constants.TaskStatus][]constants.TaskStatus{
	constants.TaskStatusPending: {
		constants.TaskStatusInProgress,
		constants.TaskStatusBlocked,
	},
	constants.TaskStatusInProgress: {
		constants.TaskStatusCompleted,
		constants.TaskStatusFailed,
		constants.TaskStatusBlocked,
	},
	constants.TaskStatusFailed:  {constants.TaskStatusInProgress},
	constants.TaskStatusBlocked: {constants.TaskStatusInProgress},
}

// terminalTaskStatuses defines task states with no outgoing transitions.
// Failed is NOT terminal: it may be retried until the attempt cap.
//
//nolint:gochecknoglobals // Read-only lookup table for terminal state checks
var terminalTaskStatuses = map[constants.TaskStatus]bool{
	constants.TaskStatusCompleted: true,
}

// IsValidSessionTransition checks if a session status transition is allowed.
// Returns false for transitions from terminal states or to the same state.
func IsValidSessionTransition(from, to constants.SessionStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidSessionTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsValidTaskTransition checks if a task status transition is allowed.
// Returns false for transitions from terminal states or to the same state.
func IsValidTaskTransition(from, to constants.TaskStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidTaskTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// IsTerminalTaskStatus returns true for task states with no outgoing
// transitions. Only Completed qualifies: failed tasks may retry and blocked
// tasks may resume.
func IsTerminalTaskStatus(status constants.TaskStatus) bool {
	return terminalTaskStatuses[status]
}

// IsTerminalSessionStatus returns true for session states with no outgoing
// transitions: every state except Active.
func IsTerminalSessionStatus(status constants.SessionStatus) bool {
	return status != constants.SessionStatusActive
}
