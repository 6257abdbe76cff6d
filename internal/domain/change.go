package domain

// ChangeSet describes a hypothetical or actual change to one artifact kind:
// which identifiers were added, modified, or removed, plus any explicit
// rename mappings. A ChangeSet is pure data; impact analysis never mutates
// state.
type ChangeSet struct {
	// Added lists identifiers introduced by the change.
	Added []string `json:"added,omitempty"`

	// Modified lists identifiers whose meaning or content changed.
	Modified []string `json:"modified,omitempty"`

	// Removed lists identifiers deleted by the change.
	Removed []string `json:"removed,omitempty"`

	// Renames maps old identifier → new identifier for explicit renames.
	// A rename is the only removal that propagation may apply
	// automatically.
	Renames map[string]string `json:"renames,omitempty"`

	// MetadataOnly marks a change that touches no identifiers (e.g. a
	// description edit). Impact on downstream kinds is low.
	MetadataOnly bool `json:"metadata_only,omitempty"`
}

// Empty reports whether the change set carries no identifier changes.
func (c ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0 && len(c.Renames) == 0
}

// ImpactLevel grades how severely a change affects a downstream kind.
type ImpactLevel string

// Impact levels, ordered low to high.
const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// KindImpact is the computed impact of a change on one downstream kind.
type KindImpact struct {
	// Kind is the affected downstream kind.
	Kind Kind `json:"kind"`

	// Level is the graded severity of the impact.
	Level ImpactLevel `json:"level"`

	// Actions lists the concrete steps required to bring the downstream
	// kind back in sync.
	Actions []string `json:"actions"`
}

// ImpactReport is the full result of change impact analysis: one entry per
// downstream kind reachable from the changed kind.
type ImpactReport struct {
	// Kind is the changed upstream kind.
	Kind Kind `json:"kind"`

	// Impacts holds one entry per reachable downstream kind, in canonical
	// kind order.
	Impacts []KindImpact `json:"impacts"`
}

// HighestLevel returns the most severe impact level in the report, or
// ImpactLow for an empty report.
func (r ImpactReport) HighestLevel() ImpactLevel {
	level := ImpactLow
	for _, imp := range r.Impacts {
		switch imp.Level {
		case ImpactHigh:
			return ImpactHigh
		case ImpactMedium:
			level = ImpactMedium
		case ImpactLow:
			// No upgrade.
		}
	}
	return level
}

// PropagationResult reports what PropagateChange did and what it refused
// to do. Only safe propagations are applied; everything else is queued for
// manual authoring.
type PropagationResult struct {
	// AppliedActions describes the automatic propagations that were
	// applied (stub creation, rename reference updates).
	AppliedActions []string `json:"applied_actions"`

	// ManualReviewRequired lists the artifacts and reasons that still
	// need human or agent authoring.
	ManualReviewRequired []string `json:"manual_review_required"`

	// Conflicts holds the dangling references that propagation could not
	// resolve. The caller must choose a resolution for each.
	Conflicts []Conflict `json:"conflicts,omitempty"`

	// ResidualWarnings carries warnings that survive the propagation,
	// such as orphaned references explicitly kept by a prior resolution.
	ResidualWarnings []string `json:"residual_warnings,omitempty"`
}

// Conflict describes a reference that disappeared upstream with no rename
// mapping. It is surfaced with resolution options; the core never picks one
// automatically.
type Conflict struct {
	// ID is the dangling identifier.
	ID string `json:"id"`

	// UpstreamKind is the kind that used to define the identifier.
	UpstreamKind Kind `json:"upstream_kind"`

	// ReferencingKind is the downstream kind still referencing it.
	ReferencingKind Kind `json:"referencing_kind"`
}

// ResolutionChoice is a caller's explicit decision for one conflict.
type ResolutionChoice string

// Resolution choices for a dangling reference.
const (
	// ResolutionRemove drops the dangling reference from the downstream
	// artifact.
	ResolutionRemove ResolutionChoice = "remove"

	// ResolutionReassign replaces the dangling reference with another
	// existing upstream identifier.
	ResolutionReassign ResolutionChoice = "reassign"

	// ResolutionKeep leaves the reference in place as a deliberate
	// orphan. It is reported as a residual warning on every subsequent
	// check, never silently dropped.
	ResolutionKeep ResolutionChoice = "keep"
)

// ResolutionOption pairs a choice with its one-line description for
// presentation to the caller.
type ResolutionOption struct {
	Choice      ResolutionChoice `json:"choice"`
	Description string           `json:"description"`
}
