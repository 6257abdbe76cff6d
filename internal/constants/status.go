package constants

// SessionStatus represents the state of a work session.
// Status values use snake_case for JSON serialization compatibility.
type SessionStatus string

// Session status constants. A session starts active and ends in exactly one
// of the remaining states:
//
//	Active → Completed, Crashed, Paused
const (
	// SessionStatusActive indicates the session is currently executing tasks.
	// At most one session may be active per project.
	SessionStatusActive SessionStatus = "active"

	// SessionStatusCompleted indicates the session finished normally.
	SessionStatusCompleted SessionStatus = "completed"

	// SessionStatusCrashed indicates the session was inferred to have died
	// without ending cleanly. Assigned by crash detection at process start,
	// or recorded explicitly when a caller force-ends a stale session.
	SessionStatusCrashed SessionStatus = "crashed"

	// SessionStatusPaused indicates an intentional stop. No crash inference
	// is made for paused sessions.
	SessionStatusPaused SessionStatus = "paused"
)

// String returns the string representation of the SessionStatus.
func (s SessionStatus) String() string {
	return string(s)
}

// TaskStatus represents the state of a task in the session state machine.
type TaskStatus string

// Task status constants follow the state machine:
//
//	Pending → InProgress, Blocked
//	InProgress → Completed, Failed, Blocked
//	Failed → InProgress (retry, up to the attempt cap)
//	Blocked → InProgress
//
// Completed is strictly terminal. Failed is terminal unless retried.
const (
	// TaskStatusPending indicates a task is planned but not yet started.
	TaskStatusPending TaskStatus = "pending"

	// TaskStatusInProgress indicates the task is currently being executed.
	// A session has at most one in_progress task at a time.
	TaskStatusInProgress TaskStatus = "in_progress"

	// TaskStatusCompleted indicates the task finished successfully.
	// Completed tasks are never re-executed on resume.
	TaskStatusCompleted TaskStatus = "completed"

	// TaskStatusFailed indicates the task failed. It may be retried,
	// re-entering in_progress and incrementing the attempt count.
	TaskStatusFailed TaskStatus = "failed"

	// TaskStatusBlocked indicates the task is waiting on an external
	// condition. It returns to in_progress once the condition clears.
	TaskStatusBlocked TaskStatus = "blocked"
)

// String returns the string representation of the TaskStatus.
func (s TaskStatus) String() string {
	return string(s)
}

// TodoStatus represents the lifecycle state of a todo record.
type TodoStatus string

// Todo status constants share the task vocabulary shape:
//
//	Open → InProgress, Blocked, Resolved, WontFix
//	InProgress → Blocked, Resolved, WontFix, Open
//	Blocked → InProgress, Resolved, WontFix
//
// Resolved and WontFix are terminal.
const (
	// TodoStatusOpen indicates a todo that has not been picked up.
	TodoStatusOpen TodoStatus = "open"

	// TodoStatusInProgress indicates work on the todo has started.
	TodoStatusInProgress TodoStatus = "in_progress"

	// TodoStatusBlocked indicates the todo is waiting on something else.
	TodoStatusBlocked TodoStatus = "blocked"

	// TodoStatusResolved indicates the todo was fixed. Requires notes.
	TodoStatusResolved TodoStatus = "resolved"

	// TodoStatusWontFix indicates the todo was explicitly declined.
	TodoStatusWontFix TodoStatus = "wont_fix"
)

// String returns the string representation of the TodoStatus.
func (s TodoStatus) String() string {
	return string(s)
}
