package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/pipeline/internal/constants"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// mockClock is a settable clock for driving crash detection.
type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

func (c *mockClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T) (*Manager, *mockClock) {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	clk := &mockClock{now: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)}
	return NewManager(store, clk, zerolog.Nop(), 5*time.Minute, 3), clk
}

func TestManager_Init(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Init(ctx, "plans/login.md", "feature/login", false)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "plans/login.md", sess.Plan)
	assert.Equal(t, "feature/login", sess.Branch)
	assert.Equal(t, constants.SessionStatusActive, sess.Status)

	active, err := m.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, active.ID)
}

func TestManager_Init_EmptyPlan(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	_, err := m.Init(context.Background(), "", "", false)
	assert.ErrorIs(t, err, pipelineerrors.ErrEmptyValue)
}

func TestManager_Init_RefusesSecondActiveSession(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)

	_, err = m.Init(ctx, "plans/b.md", "", false)
	assert.ErrorIs(t, err, pipelineerrors.ErrSessionActive)

	// Takeover records the stale session as crashed and starts fresh.
	second, err := m.Init(ctx, "plans/b.md", "", true)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	slog, err := m.Log(ctx)
	require.NoError(t, err)
	require.Len(t, slog.Sessions, 2)
	assert.Equal(t, constants.SessionStatusCrashed, slog.Sessions[0].Status)
	assert.Equal(t, constants.SessionStatusActive, slog.Sessions[1].Status)
}

func TestManager_Active_NoSession(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	_, err := m.Active(context.Background())
	assert.ErrorIs(t, err, pipelineerrors.ErrNoActiveSession)
}

func TestManager_CheckCrashed_NoSessions(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	check, err := m.CheckCrashed(context.Background())
	require.NoError(t, err)
	assert.False(t, check.HasCrashedSession)
	assert.False(t, check.HasActiveSession)
	assert.Contains(t, check.Recommendation, "start a new session")
}

func TestManager_CheckCrashed_TerminalLatest(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	_, err = m.End(ctx, constants.SessionStatusCompleted, "done")
	require.NoError(t, err)

	check, err := m.CheckCrashed(ctx)
	require.NoError(t, err)
	assert.False(t, check.HasCrashedSession)
	assert.Contains(t, check.Recommendation, "last session ended completed")
}

func TestManager_CheckCrashed_FreshCheckpointIsNotACrash(t *testing.T) {
	t.Parallel()

	m, clk := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)

	clk.Advance(30 * time.Second)

	check, err := m.CheckCrashed(ctx)
	require.NoError(t, err)
	assert.False(t, check.HasCrashedSession)
	assert.True(t, check.HasActiveSession)
	assert.Equal(t, sess.ID, check.SessionID)
	assert.Contains(t, check.Recommendation, "another process may still be running")
}

func TestManager_CheckCrashed_StaleCheckpointWithTaskInFlight(t *testing.T) {
	t.Parallel()

	m, clk := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	_, err = m.StartTask(ctx, "TASK-004")
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)

	check, err := m.CheckCrashed(ctx)
	require.NoError(t, err)
	assert.True(t, check.HasCrashedSession)
	assert.Equal(t, sess.ID, check.SessionID)
	assert.Equal(t, "TASK-004", check.ResumeTaskID)
	assert.Contains(t, check.Recommendation, "resume at task TASK-004")
}

func TestManager_Resume(t *testing.T) {
	t.Parallel()

	m, clk := newTestManager(t)
	ctx := context.Background()

	crashed, err := m.Init(ctx, "plans/a.md", "feature/a", false)
	require.NoError(t, err)

	// Complete one task, then leave another in flight before the crash.
	_, err = m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)
	_, err = m.CompleteTask(ctx, "TASK-001", []string{"api/users.go"}, []string{"abc123"})
	require.NoError(t, err)
	_, err = m.StartTask(ctx, "TASK-002")
	require.NoError(t, err)

	clk.Advance(10 * time.Minute)

	sess, resumeTask, err := m.Resume(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, crashed.ID, sess.ID)
	assert.Equal(t, "plans/a.md", sess.Plan)
	assert.Equal(t, "feature/a", sess.Branch)
	assert.Equal(t, "TASK-002", resumeTask)

	slog, err := m.Log(ctx)
	require.NoError(t, err)
	require.Len(t, slog.Sessions, 2)
	assert.Equal(t, constants.SessionStatusCrashed, slog.Sessions[0].Status)

	// The in-flight task was failed so its attempt is accounted for, and
	// the crashed session's counters agree with the task map.
	assert.Equal(t, constants.TaskStatusFailed, slog.Tasks["TASK-002"].Status)
	assert.Equal(t, "session crashed while task was in flight", slog.Tasks["TASK-002"].LastError)
	assert.Equal(t, 1, slog.Sessions[0].TasksFailed)
	assert.Equal(t, 1, slog.Sessions[0].TasksCompleted)
	assert.Empty(t, slog.Sessions[0].CurrentTaskID)

	// Completed work survives: the task is never re-executed.
	assert.Equal(t, constants.TaskStatusCompleted, slog.Tasks["TASK-001"].Status)
}

func TestManager_Resume_WithoutCrash(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, _, err := m.Resume(ctx)
	assert.ErrorIs(t, err, pipelineerrors.ErrSessionNotFound)

	// An active session with a fresh checkpoint is not resumable either.
	_, err = m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	_, _, err = m.Resume(ctx)
	assert.ErrorIs(t, err, pipelineerrors.ErrSessionNotFound)
}

func TestManager_StartTask(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)

	task, err := m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusInProgress, task.Status)
	assert.Equal(t, 1, task.Attempts)
	assert.NotNil(t, task.StartedAt)

	active, err := m.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TASK-001", active.CurrentTaskID)
	assert.Equal(t, []string{"TASK-001"}, active.TasksAttempted)
}

func TestManager_StartTask_OneInFlight(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	_, err = m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)

	_, err = m.StartTask(ctx, "TASK-002")
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidTransition)
}

func TestManager_StartTask_NoActiveSession(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)

	_, err := m.StartTask(context.Background(), "TASK-001")
	assert.ErrorIs(t, err, pipelineerrors.ErrNoActiveSession)
}

func TestManager_CompleteTask(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	_, err = m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)

	task, err := m.CompleteTask(ctx, "TASK-001", []string{"api/users.go"}, []string{"abc123", "def456"})
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusCompleted, task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.Equal(t, []string{"api/users.go"}, task.ModifiedResources)
	assert.Equal(t, []string{"abc123", "def456"}, task.CommitIDs)

	active, err := m.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active.CurrentTaskID)
	assert.Equal(t, 1, active.TasksCompleted)
	assert.Equal(t, 2, active.Commits)

	// Completed is terminal.
	_, err = m.StartTask(ctx, "TASK-001")
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidTransition)
}

func TestManager_CompleteTask_NotInFlight(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)

	_, err = m.CompleteTask(ctx, "TASK-001", nil, nil)
	assert.ErrorIs(t, err, pipelineerrors.ErrTaskNotFound)
}

func TestManager_FailTask_RetryUntilAttemptCap(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)

	// Three start/fail cycles exhaust the attempt budget.
	for attempt := 1; attempt <= 3; attempt++ {
		task, err := m.StartTask(ctx, "TASK-001")
		require.NoError(t, err)
		assert.Equal(t, attempt, task.Attempts)

		task, err = m.FailTask(ctx, "TASK-001", "connection refused")
		require.NoError(t, err)
		assert.Equal(t, constants.TaskStatusFailed, task.Status)
		assert.Equal(t, "connection refused", task.LastError)
	}

	_, err = m.StartTask(ctx, "TASK-001")
	assert.ErrorIs(t, err, pipelineerrors.ErrMaxAttemptsExceeded)

	active, err := m.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, active.TasksFailed)
}

func TestManager_BlockTask(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	_, err = m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)

	_, err = m.BlockTask(ctx, "TASK-001", "")
	assert.ErrorIs(t, err, pipelineerrors.ErrEmptyValue)

	task, err := m.BlockTask(ctx, "TASK-001", "waiting on schema review")
	require.NoError(t, err)
	assert.Equal(t, constants.TaskStatusBlocked, task.Status)
	assert.Equal(t, "waiting on schema review", task.BlockedReason)

	active, err := m.Active(ctx)
	require.NoError(t, err)
	assert.Empty(t, active.CurrentTaskID, "blocking frees the in-flight slot")
}

func TestManager_BlockTask_DoesNotConsumeAttempt(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)

	task, err := m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempts)

	_, err = m.BlockTask(ctx, "TASK-001", "waiting on upstream")
	require.NoError(t, err)

	task, err = m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)
	assert.Equal(t, 1, task.Attempts, "resuming from blocked is not a retry")
	assert.Empty(t, task.BlockedReason)
}

func TestManager_Checkpoint(t *testing.T) {
	t.Parallel()

	m, clk := newTestManager(t)
	ctx := context.Background()

	sess, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	first := sess.LastCheckpoint

	clk.Advance(2 * time.Minute)
	require.NoError(t, m.Checkpoint(ctx))

	active, err := m.Active(ctx)
	require.NoError(t, err)
	assert.True(t, active.LastCheckpoint.After(first))
}

func TestManager_End(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)

	sess, err := m.End(ctx, constants.SessionStatusCompleted, "implemented login flow")
	require.NoError(t, err)
	assert.Equal(t, constants.SessionStatusCompleted, sess.Status)
	assert.NotNil(t, sess.EndedAt)
	assert.Equal(t, "implemented login flow", sess.Summary)

	_, err = m.End(ctx, constants.SessionStatusCompleted, "")
	assert.ErrorIs(t, err, pipelineerrors.ErrNoActiveSession)
}

func TestManager_GetTask(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.GetTask(ctx, "TASK-001")
	assert.ErrorIs(t, err, pipelineerrors.ErrTaskNotFound)

	_, err = m.Init(ctx, "plans/a.md", "", false)
	require.NoError(t, err)
	_, err = m.StartTask(ctx, "TASK-001")
	require.NoError(t, err)

	task, err := m.GetTask(ctx, "TASK-001")
	require.NoError(t, err)
	assert.Equal(t, "TASK-001", task.ID)
}
