package todo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// mockClock is a settable clock for observing timestamp updates.
type mockClock struct {
	now time.Time
}

func (c *mockClock) Now() time.Time { return c.now }

func (c *mockClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager(t *testing.T) (*Manager, *mockClock, string) {
	t.Helper()
	baseDir := t.TempDir()
	clk := &mockClock{now: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC)}
	m, err := NewManager(baseDir, clk)
	require.NoError(t, err)
	return m, clk, baseDir
}

func TestIsValidTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from constants.TodoStatus
		to   constants.TodoStatus
		want bool
	}{
		{"open to in_progress", constants.TodoStatusOpen, constants.TodoStatusInProgress, true},
		{"open to resolved", constants.TodoStatusOpen, constants.TodoStatusResolved, true},
		{"in_progress back to open", constants.TodoStatusInProgress, constants.TodoStatusOpen, true},
		{"blocked to in_progress", constants.TodoStatusBlocked, constants.TodoStatusInProgress, true},
		{"blocked cannot reopen directly", constants.TodoStatusBlocked, constants.TodoStatusOpen, false},
		{"resolved is terminal", constants.TodoStatusResolved, constants.TodoStatusOpen, false},
		{"wont_fix is terminal", constants.TodoStatusWontFix, constants.TodoStatusInProgress, false},
		{"same state refused", constants.TodoStatusOpen, constants.TodoStatusOpen, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsValidTransition(tc.from, tc.to))
		})
	}
}

func TestManager_Create(t *testing.T) {
	t.Parallel()

	m, _, baseDir := newTestManager(t)
	ctx := context.Background()

	todo, err := m.Create(ctx, "perf", "Slow artifact listing under load", "code review", domain.PriorityP1)
	require.NoError(t, err)
	assert.Equal(t, "PERF-001", todo.ID, "category is uppercased for the identifier")
	assert.Equal(t, constants.TodoStatusOpen, todo.Status)
	assert.Equal(t, domain.PriorityP1, todo.Priority)
	assert.Equal(t, "PERF", todo.Category)
	assert.Equal(t, todo.CreatedAt, todo.UpdatedAt)

	// The record lands in its priority bucket.
	entries, err := os.ReadDir(filepath.Join(baseDir, constants.TodosDir, "p1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "PERF-001-open-P1-slow-artifact-listing-under-load.yaml", entries[0].Name())
}

func TestManager_Create_Validation(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "", "title", "", domain.PriorityP2)
	assert.ErrorIs(t, err, pipelineerrors.ErrEmptyValue)

	_, err = m.Create(ctx, "PERF", "  ", "", domain.PriorityP2)
	assert.ErrorIs(t, err, pipelineerrors.ErrEmptyValue)

	_, err = m.Create(ctx, "PERF", "title", "", domain.Priority("P9"))
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidArgument)
}

func TestManager_Create_CountersArePerCategory(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "PERF", "a", "", domain.PriorityP2)
	require.NoError(t, err)
	second, err := m.Create(ctx, "PERF", "b", "", domain.PriorityP2)
	require.NoError(t, err)
	other, err := m.Create(ctx, "SEC", "c", "", domain.PriorityP0)
	require.NoError(t, err)

	assert.Equal(t, "PERF-001", first.ID)
	assert.Equal(t, "PERF-002", second.ID)
	assert.Equal(t, "SEC-001", other.ID)
}

func TestManager_Create_IdentifiersNeverReused(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.Create(ctx, "PERF", "first finding", "", domain.PriorityP2)
	require.NoError(t, err)
	require.Equal(t, "PERF-001", first.ID)

	_, err = m.Resolve(ctx, first.ID, constants.TodoStatusResolved, "fixed by caching")
	require.NoError(t, err)

	// A new record after resolution gets the next number, not the old one.
	next, err := m.Create(ctx, "PERF", "second finding", "", domain.PriorityP2)
	require.NoError(t, err)
	assert.Equal(t, "PERF-002", next.ID)
}

func TestManager_Get(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "", domain.PriorityP2)
	require.NoError(t, err)

	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Title, got.Title)

	_, err = m.Get(ctx, "PERF-999")
	assert.ErrorIs(t, err, pipelineerrors.ErrTodoNotFound)
}

func TestManager_UpdateStatus_RelocatesPreservingFields(t *testing.T) {
	t.Parallel()

	m, clk, baseDir := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "load test", domain.PriorityP1)
	require.NoError(t, err)

	clk.Advance(time.Hour)
	updated, err := m.UpdateStatus(ctx, created.ID, constants.TodoStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, constants.TodoStatusInProgress, updated.Status)

	// Everything except Status and UpdatedAt is preserved.
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Priority, updated.Priority)
	assert.Equal(t, created.Title, updated.Title)
	assert.Equal(t, created.Source, updated.Source)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	// Old file is gone; the new one encodes the new status.
	entries, err := os.ReadDir(filepath.Join(baseDir, constants.TodosDir, "p1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "in_progress")
}

func TestManager_UpdateStatus_TerminalRequiresResolve(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "", domain.PriorityP2)
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, created.ID, constants.TodoStatusResolved)
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidArgument)

	_, err = m.UpdateStatus(ctx, created.ID, constants.TodoStatusWontFix)
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidArgument)
}

func TestManager_UpdateStatus_InvalidTransition(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "", domain.PriorityP2)
	require.NoError(t, err)

	_, err = m.UpdateStatus(ctx, created.ID, constants.TodoStatusBlocked)
	require.NoError(t, err)

	// Blocked cannot jump straight back to open.
	_, err = m.UpdateStatus(ctx, created.ID, constants.TodoStatusOpen)
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidTransition)
}

func TestManager_UpdatePriority(t *testing.T) {
	t.Parallel()

	m, _, baseDir := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "", domain.PriorityP2)
	require.NoError(t, err)

	updated, err := m.UpdatePriority(ctx, created.ID, domain.PriorityP0)
	require.NoError(t, err)
	assert.Equal(t, domain.PriorityP0, updated.Priority)

	// Record moved from p2 to p0.
	old, err := os.ReadDir(filepath.Join(baseDir, constants.TodosDir, "p2"))
	require.NoError(t, err)
	assert.Empty(t, old)
	entries, err := os.ReadDir(filepath.Join(baseDir, constants.TodosDir, "p0"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestManager_UpdatePriority_TerminalRefused(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "", domain.PriorityP2)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, created.ID, constants.TodoStatusResolved, "done")
	require.NoError(t, err)

	_, err = m.UpdatePriority(ctx, created.ID, domain.PriorityP0)
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidTransition)
}

func TestManager_Resolve(t *testing.T) {
	t.Parallel()

	m, _, baseDir := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "", domain.PriorityP2)
	require.NoError(t, err)

	resolved, err := m.Resolve(ctx, created.ID, constants.TodoStatusResolved, "fixed by caching the listing")
	require.NoError(t, err)
	assert.Equal(t, constants.TodoStatusResolved, resolved.Status)
	assert.Equal(t, "fixed by caching the listing", resolved.ResolutionNotes)

	// Record moved to the resolved bucket.
	entries, err := os.ReadDir(filepath.Join(baseDir, constants.TodosDir, constants.ResolvedBucket))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "resolved")

	// Still findable by ID after relocation.
	got, err := m.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.TodoStatusResolved, got.Status)
}

func TestManager_Resolve_NotesRequiredForBothTerminalStatuses(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "PERF", "finding", "", domain.PriorityP2)
	require.NoError(t, err)

	_, err = m.Resolve(ctx, created.ID, constants.TodoStatusResolved, "   ")
	assert.ErrorIs(t, err, pipelineerrors.ErrResolutionNotesRequired)

	_, err = m.Resolve(ctx, created.ID, constants.TodoStatusWontFix, "")
	assert.ErrorIs(t, err, pipelineerrors.ErrResolutionNotesRequired)

	// Non-terminal target statuses are rejected outright.
	_, err = m.Resolve(ctx, created.ID, constants.TodoStatusBlocked, "notes")
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidArgument)
}

func TestManager_Resolve_WontFix(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	created, err := m.Create(ctx, "SEC", "false positive from scanner", "", domain.PriorityP3)
	require.NoError(t, err)

	resolved, err := m.Resolve(ctx, created.ID, constants.TodoStatusWontFix, "scanner rule misfires on test fixtures")
	require.NoError(t, err)
	assert.Equal(t, constants.TodoStatusWontFix, resolved.Status)

	// Terminal records cannot resolve again.
	_, err = m.Resolve(ctx, created.ID, constants.TodoStatusResolved, "notes")
	assert.ErrorIs(t, err, pipelineerrors.ErrInvalidTransition)
}

func TestManager_List(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "PERF", "slow query", "", domain.PriorityP2)
	require.NoError(t, err)
	_, err = m.Create(ctx, "SEC", "missing auth check", "", domain.PriorityP0)
	require.NoError(t, err)
	_, err = m.Create(ctx, "PERF", "memory growth", "", domain.PriorityP1)
	require.NoError(t, err)

	todos, err := m.List(ctx, domain.TodoFilter{})
	require.NoError(t, err)
	require.Len(t, todos, 3)

	// Priority tier first, then identifier.
	assert.Equal(t, "SEC-001", todos[0].ID)
	assert.Equal(t, "PERF-002", todos[1].ID)
	assert.Equal(t, "PERF-001", todos[2].ID)
}

func TestManager_List_Filters(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "PERF", "slow query", "", domain.PriorityP2)
	require.NoError(t, err)
	sec, err := m.Create(ctx, "SEC", "missing auth check", "", domain.PriorityP0)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, sec.ID, constants.TodoStatusResolved, "added middleware")
	require.NoError(t, err)

	open := constants.TodoStatusOpen
	todos, err := m.List(ctx, domain.TodoFilter{Status: &open})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "PERF-001", todos[0].ID)

	p0 := domain.PriorityP0
	todos, err = m.List(ctx, domain.TodoFilter{Priority: &p0})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "SEC-001", todos[0].ID)

	todos, err = m.List(ctx, domain.TodoFilter{Category: "PERF"})
	require.NoError(t, err)
	require.Len(t, todos, 1)

	todos, err = m.List(ctx, domain.TodoFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, todos, 1)
}

func TestManager_Summary(t *testing.T) {
	t.Parallel()

	m, _, _ := newTestManager(t)
	ctx := context.Background()

	_, err := m.Create(ctx, "PERF", "a", "", domain.PriorityP2)
	require.NoError(t, err)
	_, err = m.Create(ctx, "PERF", "b", "", domain.PriorityP1)
	require.NoError(t, err)
	sec, err := m.Create(ctx, "SEC", "c", "", domain.PriorityP0)
	require.NoError(t, err)
	_, err = m.Resolve(ctx, sec.ID, constants.TodoStatusResolved, "patched")
	require.NoError(t, err)

	summary, err := m.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.ByStatus[constants.TodoStatusOpen])
	assert.Equal(t, 1, summary.ByStatus[constants.TodoStatusResolved])
	assert.Equal(t, 2, summary.ByCategory["PERF"])
	assert.Equal(t, 1, summary.ByCategory["SEC"])
	assert.Equal(t, 1, summary.ByPriority[domain.PriorityP0])
}

func TestSlugify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple title", "Fix the cache", "fix-the-cache"},
		{"punctuation collapses", "N+1 queries!! (in listing)", "n-1-queries-in-listing"},
		{"empty falls back", "", "untitled"},
		{"symbols only fall back", "!!!", "untitled"},
		{
			"long title truncates",
			"a very long title that should be cut off at the configured maximum length",
			"a-very-long-title-that-should-be-cut-off",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, slugify(tc.input))
		})
	}
}
