package domain

import (
	"time"

	"github.com/forgeworks/pipeline/internal/constants"
)

// Priority is the todo priority tier, P0 (most urgent) through P3.
type Priority string

// Priority tiers.
const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
)

// ValidPriorities returns all priority tiers, most urgent first.
func ValidPriorities() []Priority {
	return []Priority{PriorityP0, PriorityP1, PriorityP2, PriorityP3}
}

// IsValid checks if the priority is a known tier.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityP0, PriorityP1, PriorityP2, PriorityP3:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Priority.
func (p Priority) String() string {
	return string(p)
}

// Todo is a standalone finding record with its own status lifecycle.
// The identifier encodes the category (e.g. PERF-001), is assigned once
// from a per-category counter, and is never reused even after resolution.
// Storage location is derived from current status and priority; it is
// never stored truth of its own.
type Todo struct {
	// ID is the category-prefixed identifier (e.g. PERF-001).
	ID string `yaml:"id"`

	// Status is the current lifecycle state.
	Status constants.TodoStatus `yaml:"status"`

	// Priority is the tier the record is bucketed under while open.
	Priority Priority `yaml:"priority"`

	// Category is the finding category the ID prefix encodes (e.g. PERF).
	Category string `yaml:"category"`

	// Title is the free-text summary of the finding.
	Title string `yaml:"title"`

	// Source references where the finding came from (file, review, task).
	Source string `yaml:"source,omitempty"`

	// CreatedAt is when the record was created. Preserved byte-for-byte
	// across status changes.
	CreatedAt time.Time `yaml:"created_at"`

	// UpdatedAt is when the record last changed. The only timestamp a
	// status update may touch.
	UpdatedAt time.Time `yaml:"updated_at"`

	// ResolutionNotes holds the non-empty notes required to resolve.
	ResolutionNotes string `yaml:"resolution_notes,omitempty"`
}

// Terminal reports whether the todo is in a terminal status.
func (t *Todo) Terminal() bool {
	return t.Status == constants.TodoStatusResolved || t.Status == constants.TodoStatusWontFix
}

// TodoFilter specifies criteria for listing todos.
type TodoFilter struct {
	Status   *constants.TodoStatus // nil = all statuses
	Priority *Priority             // nil = all priorities
	Category string                // empty = all categories
	Limit    int                   // 0 = unlimited
}

// Match returns true if the todo matches the filter criteria.
func (f TodoFilter) Match(t *Todo) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	return true
}

// TodoSummary is the derived count breakdown over all todo buckets.
// Summaries are computed fresh on every call, never maintained as state.
type TodoSummary struct {
	Total      int                          `json:"total"`
	ByStatus   map[constants.TodoStatus]int `json:"by_status"`
	ByPriority map[Priority]int             `json:"by_priority"`
	ByCategory map[string]int               `json:"by_category"`
}
