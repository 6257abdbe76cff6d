// Package todo manages standalone finding records with category-prefixed
// identifiers and a small status lifecycle.
//
// Identifiers come from per-category monotonic counters and are never
// reused, even after a record is resolved or deleted. A record's storage
// location and filename are derived entirely from its current status and
// priority; moving a record is delete-then-write of the same YAML body
// with only the changed fields touched.
package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/forgeworks/pipeline/internal/clock"
	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/ctxutil"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

const (
	fileExtension = ".yaml"

	dirPerm  = 0o750
	filePerm = 0o600

	maxSlugLen = 40
)

// ValidTransitions defines all allowed todo status transitions.
// Format: from_status -> []to_statuses
//
// The lifecycle:
//
//	Open → InProgress, Blocked, Resolved, WontFix
//	InProgress → Blocked, Resolved, WontFix, Open
//	Blocked → InProgress, Resolved, WontFix
//
// Resolved and WontFix are terminal.
//
//nolint:gochecknoglobals // Exported for testing and read-only lookup table
var ValidTransitions = map[constants.TodoStatus][]constants.TodoStatus{
	constants.TodoStatusOpen: {
		constants.TodoStatusInProgress,
		constants.TodoStatusBlocked,
		constants.TodoStatusResolved,
		constants.TodoStatusWontFix,
	},
	constants.TodoStatusInProgress: {
		constants.TodoStatusBlocked,
		constants.TodoStatusResolved,
		constants.TodoStatusWontFix,
		constants.TodoStatusOpen,
	},
	constants.TodoStatusBlocked: {
		constants.TodoStatusInProgress,
		constants.TodoStatusResolved,
		constants.TodoStatusWontFix,
	},
}

// IsValidTransition checks if a todo status transition is allowed.
// Returns false for transitions from terminal states or to the same state.
func IsValidTransition(from, to constants.TodoStatus) bool {
	if from == to {
		return false
	}
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// counters is the persisted per-category ID counter document. Counters only
// ever increase; retiring a record never frees its number.
type counters struct {
	Next map[string]int `json:"next"`
}

// Manager owns todo record persistence and the ID counters.
type Manager struct {
	baseDir string // Usually <project>/.pipeline
	clock   clock.Clock
}

// NewManager creates a Manager rooted at the given state directory.
// If baseDir is empty, uses .pipeline in the working directory.
func NewManager(baseDir string, clk clock.Clock) (*Manager, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = filepath.Join(wd, constants.PipelineHome)
	}
	return &Manager{baseDir: baseDir, clock: clk}, nil
}

// Create registers a new finding and assigns it the next identifier for its
// category. The counter advance is persisted before the record is written,
// so an identifier is consumed even if the record write fails; identifiers
// are never reused.
func (m *Manager) Create(ctx context.Context, category, title, source string, priority domain.Priority) (*domain.Todo, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	category = strings.ToUpper(strings.TrimSpace(category))
	if category == "" {
		return nil, fmt.Errorf("failed to create todo: category %w", pipelineerrors.ErrEmptyValue)
	}
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("failed to create todo: title %w", pipelineerrors.ErrEmptyValue)
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("failed to create todo: %w: priority %q", pipelineerrors.ErrInvalidArgument, priority)
	}

	id, err := m.nextID(category)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	now := m.clock.Now().UTC()
	t := &domain.Todo{
		ID:        id,
		Status:    constants.TodoStatusOpen,
		Priority:  priority,
		Category:  category,
		Title:     strings.TrimSpace(title),
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.write(t); err != nil {
		return nil, fmt.Errorf("failed to create todo '%s': %w", id, err)
	}
	return t, nil
}

// Get retrieves a todo by identifier, searching every bucket.
func (m *Manager) Get(ctx context.Context, id string) (*domain.Todo, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	t, _, err := m.find(id)
	return t, err
}

// UpdateStatus moves a todo between non-terminal statuses. The record is
// relocated to the bucket its new status derives; every field except Status
// and UpdatedAt is preserved byte-for-byte. Terminal statuses must go
// through Resolve, which enforces resolution notes.
func (m *Manager) UpdateStatus(ctx context.Context, id string, status constants.TodoStatus) (*domain.Todo, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if status == constants.TodoStatusResolved || status == constants.TodoStatusWontFix {
		return nil, fmt.Errorf("failed to update todo '%s': terminal status %q requires Resolve: %w",
			id, status, pipelineerrors.ErrInvalidArgument)
	}

	t, oldPath, err := m.find(id)
	if err != nil {
		return nil, err
	}
	if !IsValidTransition(t.Status, status) {
		return nil, fmt.Errorf("failed to update todo '%s': cannot move %s to %s: %w",
			id, t.Status, status, pipelineerrors.ErrInvalidTransition)
	}

	t.Status = status
	t.UpdatedAt = m.clock.Now().UTC()
	if err := m.relocate(t, oldPath); err != nil {
		return nil, fmt.Errorf("failed to update todo '%s': %w", id, err)
	}
	return t, nil
}

// UpdatePriority moves an open-state todo to a different priority bucket.
func (m *Manager) UpdatePriority(ctx context.Context, id string, priority domain.Priority) (*domain.Todo, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("failed to update todo '%s': %w: priority %q",
			id, pipelineerrors.ErrInvalidArgument, priority)
	}

	t, oldPath, err := m.find(id)
	if err != nil {
		return nil, err
	}
	if t.Terminal() {
		return nil, fmt.Errorf("failed to update todo '%s': record is %s: %w",
			id, t.Status, pipelineerrors.ErrInvalidTransition)
	}
	if t.Priority == priority {
		return t, nil
	}

	t.Priority = priority
	t.UpdatedAt = m.clock.Now().UTC()
	if err := m.relocate(t, oldPath); err != nil {
		return nil, fmt.Errorf("failed to update todo '%s': %w", id, err)
	}
	return t, nil
}

// Resolve moves a todo to a terminal status, resolved or wont_fix. Notes
// are mandatory either way: a record leaves the lifecycle only with an
// explanation attached. The record relocates to the resolved bucket.
func (m *Manager) Resolve(ctx context.Context, id string, status constants.TodoStatus, notes string) (*domain.Todo, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if status != constants.TodoStatusResolved && status != constants.TodoStatusWontFix {
		return nil, fmt.Errorf("failed to resolve todo '%s': %w: %q is not terminal",
			id, pipelineerrors.ErrInvalidArgument, status)
	}
	if strings.TrimSpace(notes) == "" {
		return nil, fmt.Errorf("failed to resolve todo '%s': %w", id, pipelineerrors.ErrResolutionNotesRequired)
	}

	t, oldPath, err := m.find(id)
	if err != nil {
		return nil, err
	}
	if !IsValidTransition(t.Status, status) {
		return nil, fmt.Errorf("failed to resolve todo '%s': cannot move %s to %s: %w",
			id, t.Status, status, pipelineerrors.ErrInvalidTransition)
	}

	t.Status = status
	t.ResolutionNotes = strings.TrimSpace(notes)
	t.UpdatedAt = m.clock.Now().UTC()
	if err := m.relocate(t, oldPath); err != nil {
		return nil, fmt.Errorf("failed to resolve todo '%s': %w", id, err)
	}
	return t, nil
}

// List returns todos matching the filter, sorted by priority tier then
// identifier. Filter.Limit caps the result after sorting.
func (m *Manager) List(ctx context.Context, filter domain.TodoFilter) ([]*domain.Todo, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	todos, err := m.loadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	out := make([]*domain.Todo, 0, len(todos))
	for _, t := range todos {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Summary computes the count breakdown over all buckets. The summary is
// derived fresh on every call; no counts are maintained as state.
func (m *Manager) Summary(ctx context.Context) (*domain.TodoSummary, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	todos, err := m.loadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to summarize todos: %w", err)
	}

	summary := &domain.TodoSummary{
		ByStatus:   make(map[constants.TodoStatus]int),
		ByPriority: make(map[domain.Priority]int),
		ByCategory: make(map[string]int),
	}
	for _, t := range todos {
		summary.Total++
		summary.ByStatus[t.Status]++
		summary.ByPriority[t.Priority]++
		summary.ByCategory[t.Category]++
	}
	return summary, nil
}

// nextID advances and persists the category counter, then formats the
// identifier. The advanced counter hits disk before any record does.
func (m *Manager) nextID(category string) (string, error) {
	c, err := m.loadCounters()
	if err != nil {
		return "", err
	}

	n := c.Next[category] + 1
	c.Next[category] = n
	if err := m.saveCounters(c); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%03d", category, n), nil
}

// loadCounters reads the counter document, empty when absent.
func (m *Manager) loadCounters() (*counters, error) {
	data, err := os.ReadFile(m.countersPath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return &counters{Next: make(map[string]int)}, nil
		}
		return nil, fmt.Errorf("failed to read counters: %w", err)
	}
	var c counters
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("counters: %w: %v", pipelineerrors.ErrStateCorrupted, err)
	}
	if c.Next == nil {
		c.Next = make(map[string]int)
	}
	return &c, nil
}

// saveCounters persists the counter document atomically.
func (m *Manager) saveCounters(c *counters) error {
	if err := os.MkdirAll(m.todosDir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create todos directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save counters: %w", err)
	}
	return atomicWrite(m.countersPath(), data)
}

// write marshals and atomically persists a record in its derived location.
func (m *Manager) write(t *domain.Todo) error {
	dir := m.bucketDir(t)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create bucket directory: %w", err)
	}
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal todo: %w", err)
	}
	return atomicWrite(filepath.Join(dir, fileName(t)), data)
}

// relocate writes the record at its new derived path, then removes the old
// file. Write-before-delete so a crash between the two leaves a readable
// record rather than none.
func (m *Manager) relocate(t *domain.Todo, oldPath string) error {
	if err := m.write(t); err != nil {
		return err
	}
	newPath := filepath.Join(m.bucketDir(t), fileName(t))
	if oldPath != "" && oldPath != newPath {
		if err := os.Remove(oldPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove old record: %w", err)
		}
	}
	return nil
}

// find locates a record by identifier across every bucket.
func (m *Manager) find(id string) (*domain.Todo, string, error) {
	for _, dir := range m.bucketDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("failed to scan todos: %w", err)
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasPrefix(name, id+"-") || !strings.HasSuffix(name, fileExtension) {
				continue
			}
			path := filepath.Join(dir, name)
			t, err := m.loadFile(path)
			if err != nil {
				return nil, "", err
			}
			if t.ID == id {
				return t, path, nil
			}
		}
	}
	return nil, "", fmt.Errorf("todo '%s': %w", id, pipelineerrors.ErrTodoNotFound)
}

// loadAll reads every record from every bucket.
func (m *Manager) loadAll() ([]*domain.Todo, error) {
	var todos []*domain.Todo
	for _, dir := range m.bucketDirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, fileExtension) {
				continue
			}
			t, err := m.loadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			todos = append(todos, t)
		}
	}
	return todos, nil
}

// loadFile parses one record file.
func (m *Manager) loadFile(path string) (*domain.Todo, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path comes from a directory scan under the state dir
	if err != nil {
		return nil, fmt.Errorf("failed to read todo file: %w", err)
	}
	var t domain.Todo
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("todo file '%s': %w: %v", filepath.Base(path), pipelineerrors.ErrStateCorrupted, err)
	}
	return &t, nil
}

// todosDir returns the root of the todo buckets.
func (m *Manager) todosDir() string {
	return filepath.Join(m.baseDir, constants.TodosDir)
}

// countersPath returns the path to the counter document.
func (m *Manager) countersPath() string {
	return filepath.Join(m.todosDir(), constants.CountersFileName)
}

// bucketDir derives a record's directory from its current state: terminal
// records live under resolved/, everything else under its priority tier.
func (m *Manager) bucketDir(t *domain.Todo) string {
	if t.Terminal() {
		return filepath.Join(m.todosDir(), constants.ResolvedBucket)
	}
	return filepath.Join(m.todosDir(), strings.ToLower(t.Priority.String()))
}

// bucketDirs returns every bucket directory in priority order.
func (m *Manager) bucketDirs() []string {
	dirs := make([]string, 0, len(domain.ValidPriorities())+1)
	for _, p := range domain.ValidPriorities() {
		dirs = append(dirs, filepath.Join(m.todosDir(), strings.ToLower(p.String())))
	}
	return append(dirs, filepath.Join(m.todosDir(), constants.ResolvedBucket))
}

// fileName derives a record's filename from identifier, status, priority,
// and a slug of the title.
func fileName(t *domain.Todo) string {
	return fmt.Sprintf("%s-%s-%s-%s%s", t.ID, t.Status, t.Priority, slugify(t.Title), fileExtension)
}

// slugify lowercases the title and collapses runs of non-alphanumerics to
// single hyphens, truncated to a sane filename length.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "untitled"
	}
	return slug
}

// atomicWrite writes data to a file atomically using write-then-rename.
func atomicWrite(path string, data []byte) error {
	tmpPath := path + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
