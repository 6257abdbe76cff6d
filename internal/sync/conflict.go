package sync

import (
	"context"
	"fmt"
	"sort"

	"github.com/forgeworks/pipeline/internal/artifact"
	"github.com/forgeworks/pipeline/internal/clock"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// ResolutionOptionsFor enumerates the valid resolutions for a dangling
// reference conflict. The order is stable: remove, reassign, keep.
func ResolutionOptionsFor(c domain.Conflict) []domain.ResolutionOption {
	return []domain.ResolutionOption{
		{
			Choice: domain.ResolutionRemove,
			Description: fmt.Sprintf("delete the %s entries referencing %s",
				c.ReferencingKind, c.ID),
		},
		{
			Choice: domain.ResolutionReassign,
			Description: fmt.Sprintf("point the %s references at a different %s identifier",
				c.ReferencingKind, c.UpstreamKind),
		},
		{
			Choice: domain.ResolutionKeep,
			Description: fmt.Sprintf("keep %s as an orphaned reference, reported as a warning on every check",
				c.ID),
		},
	}
}

// Resolver applies conflict resolutions to the referencing artifact.
type Resolver struct {
	store artifact.Store
	clock clock.Clock
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store artifact.Store, clk clock.Clock) *Resolver {
	return &Resolver{store: store, clock: clk}
}

// Apply resolves a dangling reference conflict. For reassign, reassignTo
// must name an identifier defined by the current upstream artifact; for
// the other choices it is ignored. Conflicts are never auto-resolved: a
// resolution is always an explicit caller decision.
func (r *Resolver) Apply(ctx context.Context, c domain.Conflict, choice domain.ResolutionChoice, reassignTo string) error {
	target, err := r.store.Get(ctx, c.ReferencingKind)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict on %s: %w", c.ID, err)
	}

	switch choice {
	case domain.ResolutionRemove:
		target.References[c.UpstreamKind] = removeID(target.References[c.UpstreamKind], c.ID)

	case domain.ResolutionReassign:
		if reassignTo == "" {
			return fmt.Errorf("failed to resolve conflict on %s: reassign target %w",
				c.ID, pipelineerrors.ErrEmptyValue)
		}
		upstream, err := r.store.Get(ctx, c.UpstreamKind)
		if err != nil {
			return fmt.Errorf("failed to resolve conflict on %s: %w", c.ID, err)
		}
		if !upstream.DefinesSet()[reassignTo] {
			return fmt.Errorf("failed to resolve conflict on %s: %w: %s does not define %s",
				c.ID, pipelineerrors.ErrReferenceNotFound, c.UpstreamKind, reassignTo)
		}
		refs := target.References[c.UpstreamKind]
		for i, id := range refs {
			if id == c.ID {
				refs[i] = reassignTo
			}
		}
		target.References[c.UpstreamKind] = dedupe(refs)

	case domain.ResolutionKeep:
		// Keep leaves the reference in place and records it as a known
		// orphan so later checks warn instead of failing.
		if target.KeptOrphans == nil {
			target.KeptOrphans = make(map[domain.Kind][]string)
		}
		if !contains(target.KeptOrphans[c.UpstreamKind], c.ID) {
			target.KeptOrphans[c.UpstreamKind] = append(target.KeptOrphans[c.UpstreamKind], c.ID)
			sort.Strings(target.KeptOrphans[c.UpstreamKind])
		}

	default:
		return fmt.Errorf("failed to resolve conflict on %s: %w: unknown resolution %q",
			c.ID, pipelineerrors.ErrInvalidArgument, choice)
	}

	target.ModifiedAt = r.clock.Now().UTC()
	if err := r.store.Save(ctx, target); err != nil {
		return fmt.Errorf("failed to resolve conflict on %s: %w", c.ID, err)
	}
	return nil
}

// removeID returns ids without the given identifier.
func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// dedupe removes duplicate identifiers while preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, v := range ids {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// contains reports whether ids includes id.
func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
