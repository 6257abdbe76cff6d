package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgeworks/pipeline/internal/constants"
)

func TestIsValidSessionTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from constants.SessionStatus
		to   constants.SessionStatus
		want bool
	}{
		{"active to completed", constants.SessionStatusActive, constants.SessionStatusCompleted, true},
		{"active to crashed", constants.SessionStatusActive, constants.SessionStatusCrashed, true},
		{"active to paused", constants.SessionStatusActive, constants.SessionStatusPaused, true},
		{"same state refused", constants.SessionStatusActive, constants.SessionStatusActive, false},
		{"completed is terminal", constants.SessionStatusCompleted, constants.SessionStatusActive, false},
		{"crashed is terminal", constants.SessionStatusCrashed, constants.SessionStatusCompleted, false},
		{"paused is terminal", constants.SessionStatusPaused, constants.SessionStatusActive, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsValidSessionTransition(tc.from, tc.to))
		})
	}
}

func TestIsValidTaskTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from constants.TaskStatus
		to   constants.TaskStatus
		want bool
	}{
		{"pending to in_progress", constants.TaskStatusPending, constants.TaskStatusInProgress, true},
		{"pending to blocked", constants.TaskStatusPending, constants.TaskStatusBlocked, true},
		{"pending cannot complete directly", constants.TaskStatusPending, constants.TaskStatusCompleted, false},
		{"in_progress to completed", constants.TaskStatusInProgress, constants.TaskStatusCompleted, true},
		{"in_progress to failed", constants.TaskStatusInProgress, constants.TaskStatusFailed, true},
		{"in_progress to blocked", constants.TaskStatusInProgress, constants.TaskStatusBlocked, true},
		{"failed retries to in_progress", constants.TaskStatusFailed, constants.TaskStatusInProgress, true},
		{"failed cannot complete directly", constants.TaskStatusFailed, constants.TaskStatusCompleted, false},
		{"blocked resumes to in_progress", constants.TaskStatusBlocked, constants.TaskStatusInProgress, true},
		{"blocked cannot fail directly", constants.TaskStatusBlocked, constants.TaskStatusFailed, false},
		{"completed is terminal", constants.TaskStatusCompleted, constants.TaskStatusInProgress, false},
		{"same state refused", constants.TaskStatusInProgress, constants.TaskStatusInProgress, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsValidTaskTransition(tc.from, tc.to))
		})
	}
}

func TestIsTerminalTaskStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, IsTerminalTaskStatus(constants.TaskStatusCompleted))
	assert.False(t, IsTerminalTaskStatus(constants.TaskStatusFailed), "failed may retry")
	assert.False(t, IsTerminalTaskStatus(constants.TaskStatusBlocked), "blocked may resume")
	assert.False(t, IsTerminalTaskStatus(constants.TaskStatusPending))
	assert.False(t, IsTerminalTaskStatus(constants.TaskStatusInProgress))
}

func TestIsTerminalSessionStatus(t *testing.T) {
	t.Parallel()

	assert.False(t, IsTerminalSessionStatus(constants.SessionStatusActive))
	assert.True(t, IsTerminalSessionStatus(constants.SessionStatusCompleted))
	assert.True(t, IsTerminalSessionStatus(constants.SessionStatusCrashed))
	assert.True(t, IsTerminalSessionStatus(constants.SessionStatusPaused))
}
