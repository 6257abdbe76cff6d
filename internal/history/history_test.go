package history

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

func endedSession() *domain.Session {
	ended := time.Date(2026, 3, 15, 17, 30, 0, 0, time.UTC)
	return &domain.Session{
		ID:             "sess-1",
		Plan:           "plans/login.md",
		Branch:         "feature/login",
		Status:         constants.SessionStatusCompleted,
		StartedAt:      ended.Add(-2 * time.Hour),
		EndedAt:        &ended,
		TasksAttempted: []string{"TASK-001", "TASK-002"},
		TasksCompleted: 1,
		TasksFailed:    1,
		Commits:        2,
		Summary:        "implemented login flow",
	}
}

func sessionTasks() map[string]*domain.Task {
	return map[string]*domain.Task{
		"TASK-001": {
			ID:        "TASK-001",
			Status:    constants.TaskStatusCompleted,
			CommitIDs: []string{"abc123", "def456"},
		},
		"TASK-002": {
			ID:        "TASK-002",
			Status:    constants.TaskStatusFailed,
			LastError: "migration failed",
		},
	}
}

func TestAppender_Append(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	appender, err := NewAppender(baseDir)
	require.NoError(t, err)

	require.NoError(t, appender.Append(context.Background(), endedSession(), sessionTasks()))

	data, err := os.ReadFile(filepath.Join(baseDir, constants.HistoryFileName))
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "## 2026-03-15 17:30")
	assert.Contains(t, content, "plans/login.md")
	assert.Contains(t, content, "(completed)")
	assert.Contains(t, content, "- Session: `sess-1`")
	assert.Contains(t, content, "- Branch: `feature/login`")
	assert.Contains(t, content, "- Tasks: 1 completed, 1 failed, 2 attempted")
	assert.Contains(t, content, "- Commits: 2")
	assert.Contains(t, content, "- Summary: implemented login flow")
	assert.Contains(t, content, "- `TASK-001` completed (abc123, def456)")
	assert.Contains(t, content, "- `TASK-002` failed: migration failed")
}

func TestAppender_Append_OnlyAppends(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	appender, err := NewAppender(baseDir)
	require.NoError(t, err)
	ctx := context.Background()

	first := endedSession()
	require.NoError(t, appender.Append(ctx, first, sessionTasks()))

	second := endedSession()
	second.ID = "sess-2"
	second.Plan = "plans/search.md"
	require.NoError(t, appender.Append(ctx, second, nil))

	data, err := os.ReadFile(filepath.Join(baseDir, constants.HistoryFileName))
	require.NoError(t, err)
	content := string(data)

	// Both sections present, earliest first.
	assert.Equal(t, 2, strings.Count(content, "## "))
	assert.Less(t, strings.Index(content, "sess-1"), strings.Index(content, "sess-2"))
}

func TestAppender_Append_RefusesActiveSession(t *testing.T) {
	t.Parallel()

	appender, err := NewAppender(t.TempDir())
	require.NoError(t, err)

	sess := endedSession()
	sess.Status = constants.SessionStatusActive
	sess.EndedAt = nil

	err = appender.Append(context.Background(), sess, nil)
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidTransition)
}

func TestAppender_Append_NilSession(t *testing.T) {
	t.Parallel()

	appender, err := NewAppender(t.TempDir())
	require.NoError(t, err)

	err = appender.Append(context.Background(), nil, nil)
	assert.ErrorIs(t, err, pipelineerrors.ErrEmptyValue)
}
