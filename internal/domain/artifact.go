// Package domain provides shared domain types for the pipeline core.
// These types are used across all internal packages to ensure consistent
// data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import "time"

// Kind identifies an artifact kind in the authoring pipeline.
type Kind string

// Artifact kinds in canonical upstream-to-downstream order.
const (
	KindRequirements Kind = "requirements"
	KindFlow         Kind = "flow"
	KindDataModel    Kind = "data_model"
	KindJourney      Kind = "journey"
	KindTaskSet      Kind = "task_set"
	KindDecision     Kind = "decision"
	KindScaffold     Kind = "scaffold"
)

// Kinds returns all artifact kinds in canonical order.
func Kinds() []Kind {
	return []Kind{
		KindRequirements,
		KindFlow,
		KindDataModel,
		KindJourney,
		KindTaskSet,
		KindDecision,
		KindScaffold,
	}
}

// IsValid checks if the kind is a known pipeline kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindRequirements, KindFlow, KindDataModel, KindJourney,
		KindTaskSet, KindDecision, KindScaffold:
		return true
	default:
		return false
	}
}

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Artifact is a typed, versioned document produced by an authoring step.
// Artifacts are mutated only by replacing the whole document and bumping
// version and hash, never partially in place.
//
// Example JSON representation:
//
//	{
//	    "kind": "flow",
//	    "version": "1.2.0",
//	    "content_hash": "9f8a…",
//	    "modified_at": "2026-08-25T10:00:00Z",
//	    "modified_by": "flow-author",
//	    "defines": ["FLOW-001", "FLOW-002"],
//	    "references": {"requirements": ["FR-001"]},
//	    "upstream_hashes": {"requirements": "3c1d…"},
//	    "schema_version": 1
//	}
type Artifact struct {
	// Kind identifies which pipeline stage produced this document.
	Kind Kind `json:"kind"`

	// Version is the semantic version of the document, monotonically
	// increasing per kind.
	Version string `json:"version"`

	// ContentHash is the hash of the document content at last write.
	ContentHash string `json:"content_hash"`

	// ModifiedAt is when the document was last replaced.
	ModifiedAt time.Time `json:"modified_at"`

	// ModifiedBy identifies the authoring agent that produced this version.
	ModifiedBy string `json:"modified_by,omitempty"`

	// Defines lists the identifiers this document declares (e.g. FR-001).
	Defines []string `json:"defines"`

	// References maps each upstream kind to the identifiers this document
	// uses from it. Every referenced identifier must exist in the current
	// version of that upstream artifact or the document is out of sync.
	References map[Kind][]string `json:"references,omitempty"`

	// UpstreamHashes records the content hash of each upstream artifact
	// at the last successful sync. Sync status is computed by comparing
	// these against current upstream hashes, not by diffing history.
	UpstreamHashes map[Kind]string `json:"upstream_hashes,omitempty"`

	// EntryHashes maps each defined identifier to a fingerprint of its
	// entry content at last save. Diffing these against a new document
	// yields the modified identifiers for impact analysis.
	EntryHashes map[string]string `json:"entry_hashes,omitempty"`

	// Stub marks a placeholder created by propagation that still needs
	// manual authoring.
	Stub bool `json:"stub,omitempty"`

	// KeptOrphans lists upstream references deliberately kept after a
	// conflict resolution chose "keep". A kept orphan downgrades the
	// cross-reference failure to a warning but is re-reported on every
	// check, never silently dropped.
	KeptOrphans map[Kind][]string `json:"kept_orphans,omitempty"`

	// SchemaVersion enables forward-compatible schema migrations.
	SchemaVersion int `json:"schema_version"`
}

// DefinesSet returns the defined identifiers as a lookup set.
func (a *Artifact) DefinesSet() map[string]bool {
	set := make(map[string]bool, len(a.Defines))
	for _, id := range a.Defines {
		set[id] = true
	}
	return set
}
