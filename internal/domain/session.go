package domain

import (
	"time"

	"github.com/forgeworks/pipeline/internal/constants"
)

// Session represents one execution attempt of a work plan. Sessions are
// never deleted; they are appended to the session log and only their status
// fields change.
//
// Example JSON representation:
//
//	{
//	    "id": "a2f1c6d0-…",
//	    "plan": "sprint-12",
//	    "branch": "feat/sprint-12",
//	    "status": "active",
//	    "started_at": "2026-08-25T10:00:00Z",
//	    "current_task_id": "TASK-004",
//	    "tasks_attempted": ["TASK-003", "TASK-004"],
//	    "tasks_completed": 1,
//	    "tasks_failed": 0,
//	    "commits": 2,
//	    "last_checkpoint": "2026-08-25T10:05:00Z"
//	}
type Session struct {
	// ID is the unique identifier for the session (UUID).
	ID string `json:"id"`

	// Plan references the work plan being executed.
	Plan string `json:"plan"`

	// Branch is the VCS branch the session works on, if any.
	Branch string `json:"branch,omitempty"`

	// Status is the current state in the session lifecycle.
	Status constants.SessionStatus `json:"status"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the session left the active state (nil while active).
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// CurrentTaskID is the task currently in flight, empty between tasks.
	// Crash recovery resumes exactly here.
	CurrentTaskID string `json:"current_task_id,omitempty"`

	// TasksAttempted is the ordered list of task identifiers this session
	// has started, in first-start order.
	TasksAttempted []string `json:"tasks_attempted"`

	// TasksCompleted counts tasks this session completed.
	TasksCompleted int `json:"tasks_completed"`

	// TasksFailed counts tasks this session failed.
	TasksFailed int `json:"tasks_failed"`

	// Commits counts commits produced by this session's tasks.
	Commits int `json:"commits"`

	// LastCheckpoint is the timestamp of the last durably persisted state
	// transition. Crash detection compares this against the clock.
	LastCheckpoint time.Time `json:"last_checkpoint"`

	// Summary is an optional free-text summary recorded at session end.
	Summary string `json:"summary,omitempty"`
}

// Task is a unit of execution work tracked in the session log. Task records
// are keyed by identifier and reused across sessions, so a task completed
// by a crashed session stays completed for the resuming one.
type Task struct {
	// ID is the task identifier (e.g. TASK-004).
	ID string `json:"id"`

	// Status is the current state in the task lifecycle.
	Status constants.TaskStatus `json:"status"`

	// Attempts counts how many times the task has entered in_progress.
	Attempts int `json:"attempts"`

	// StartedAt is when the task first entered in_progress.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the task reached completed.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ModifiedResources lists identifiers of resources the task touched.
	ModifiedResources []string `json:"modified_resources,omitempty"`

	// CommitIDs lists commit identifiers the task produced.
	CommitIDs []string `json:"commit_ids,omitempty"`

	// LastError holds the most recent failure message, empty if none.
	LastError string `json:"last_error,omitempty"`

	// BlockedReason explains why the task is blocked, empty otherwise.
	BlockedReason string `json:"blocked_reason,omitempty"`
}

// SessionLog is the persisted project-scoped session document: every
// session ever run plus the shared task status map. It is replaced
// atomically on every transition.
type SessionLog struct {
	// Sessions is append-only across sessions, oldest first.
	Sessions []*Session `json:"sessions"`

	// Tasks maps task identifier to its current record. Shared across
	// sessions so resumption never re-executes completed work.
	Tasks map[string]*Task `json:"task_status"`

	// SchemaVersion enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}

// ActiveSession returns the active session, or nil if none.
func (l *SessionLog) ActiveSession() *Session {
	for _, s := range l.Sessions {
		if s.Status == constants.SessionStatusActive {
			return s
		}
	}
	return nil
}

// LatestSession returns the most recently started session, or nil for an
// empty log.
func (l *SessionLog) LatestSession() *Session {
	if len(l.Sessions) == 0 {
		return nil
	}
	return l.Sessions[len(l.Sessions)-1]
}

// CrashCheck is the result of crash detection at process start.
type CrashCheck struct {
	// HasCrashedSession is true when the latest session is active with a
	// stale checkpoint.
	HasCrashedSession bool `json:"has_crashed_session"`

	// HasActiveSession is true when the latest session is active,
	// regardless of checkpoint age.
	HasActiveSession bool `json:"has_active_session"`

	// SessionID identifies the session the recommendation refers to.
	SessionID string `json:"session_id,omitempty"`

	// ResumeTaskID is the in-flight task to resume at, if any.
	ResumeTaskID string `json:"resume_task_id,omitempty"`

	// Recommendation is a human-readable next step.
	Recommendation string `json:"recommendation"`
}
