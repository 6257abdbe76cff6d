// Package sync computes out-of-sync status, change impact, and propagation
// actions across the artifact dependency graph.
//
// Sync status is always derived on demand from artifact state plus the
// static kind graph; it is never cached or stored, so it cannot drift.
// Propagation applies only provably safe actions (stub creation for new
// identifiers, reference updates for explicit renames) and reports
// everything else for manual authoring.
package sync

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/forgeworks/pipeline/internal/artifact"
	"github.com/forgeworks/pipeline/internal/clock"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
	"github.com/forgeworks/pipeline/internal/graph"
)

// KindStatus reports whether one artifact kind is synchronized with its
// direct upstream kinds.
type KindStatus struct {
	// Kind is the downstream kind this status describes.
	Kind domain.Kind `json:"kind"`

	// InSync is true when every reference resolves and no upstream has
	// changed since the last successful sync.
	InSync bool `json:"in_sync"`

	// MissingRefs maps upstream kind to referenced identifiers that no
	// longer exist there.
	MissingRefs map[domain.Kind][]string `json:"missing_refs,omitempty"`

	// StaleUpstreams lists upstream kinds whose content hash changed
	// since this artifact last synced against them.
	StaleUpstreams []domain.Kind `json:"stale_upstreams,omitempty"`
}

// Status is the full sync report across all existing artifacts.
type Status struct {
	// InSync is true when every kind is in sync.
	InSync bool `json:"in_sync"`

	// PerKind holds one entry per existing artifact, in canonical order.
	PerKind []KindStatus `json:"per_kind"`
}

// Engine computes sync status and applies safe propagations.
type Engine struct {
	graph *graph.Graph
	store artifact.Store
	clock clock.Clock
	log   zerolog.Logger
}

// NewEngine creates an Engine over the given graph and store.
func NewEngine(g *graph.Graph, store artifact.Store, clk clock.Clock, log zerolog.Logger) *Engine {
	return &Engine{
		graph: g,
		store: store,
		clock: clk,
		log:   log.With().Str("component", "sync").Logger(),
	}
}

// ComputeSyncStatus reports, for every existing artifact, whether it is
// synchronized with its direct upstream kinds. The computation reads state
// but never mutates it, so repeated calls without intervening mutation
// yield identical results.
func (e *Engine) ComputeSyncStatus(ctx context.Context) (*Status, error) {
	artifacts, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sync status: %w", err)
	}

	byKind := make(map[domain.Kind]*domain.Artifact, len(artifacts))
	for _, a := range artifacts {
		byKind[a.Kind] = a
	}

	status := &Status{InSync: true}
	for _, a := range artifacts {
		ks := KindStatus{Kind: a.Kind, InSync: true}

		for _, up := range e.graph.Upstream(a.Kind) {
			upstream, ok := byKind[up]
			if !ok {
				if len(a.References[up]) > 0 {
					ks.InSync = false
					ks.MissingRefs = addMissing(ks.MissingRefs, up, a.References[up])
				}
				continue
			}

			defined := upstream.DefinesSet()
			for _, id := range a.References[up] {
				if !defined[id] {
					ks.InSync = false
					ks.MissingRefs = addMissing(ks.MissingRefs, up, []string{id})
				}
			}

			// Staleness is tracked via the upstream content hash stored
			// at last sync, not by diffing history.
			if stored, ok := a.UpstreamHashes[up]; ok && stored != upstream.ContentHash {
				ks.InSync = false
				ks.StaleUpstreams = append(ks.StaleUpstreams, up)
			}
		}

		if !ks.InSync {
			status.InSync = false
		}
		status.PerKind = append(status.PerKind, ks)
	}
	return status, nil
}

// AnalyzeChangeImpact grades how a change to one kind affects every
// downstream kind reachable through the dependency graph. The analysis is
// pure: no state is mutated.
//
// Removal of a referenced identifier and addition of a new identifier are
// high impact; modification of a referenced identifier is medium;
// metadata-only changes are low.
func (e *Engine) AnalyzeChangeImpact(ctx context.Context, kind domain.Kind, change domain.ChangeSet) (*domain.ImpactReport, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("failed to analyze change impact: %w: %q", pipelineerrors.ErrUnknownKind, kind)
	}

	artifacts, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze change impact: %w", err)
	}
	byKind := make(map[domain.Kind]*domain.Artifact, len(artifacts))
	for _, a := range artifacts {
		byKind[a.Kind] = a
	}

	report := &domain.ImpactReport{Kind: kind}
	for _, down := range e.graph.Reachable(kind) {
		impact := e.impactOn(kind, down, change, byKind)
		report.Impacts = append(report.Impacts, impact)
	}
	return report, nil
}

// impactOn grades the impact of a change on one downstream kind.
func (e *Engine) impactOn(kind, down domain.Kind, change domain.ChangeSet, byKind map[domain.Kind]*domain.Artifact) domain.KindImpact {
	impact := domain.KindImpact{Kind: down, Level: domain.ImpactLow}
	direct := e.graph.HasEdge(kind, down)

	refSet := make(map[string]bool)
	if a, ok := byKind[down]; ok {
		for _, id := range a.References[kind] {
			refSet[id] = true
		}
	}

	for _, id := range change.Removed {
		if _, renamed := change.Renames[id]; renamed {
			continue
		}
		if refSet[id] {
			impact.Level = domain.ImpactHigh
			impact.Actions = append(impact.Actions,
				fmt.Sprintf("remove or reassign %s referencing %s", down, id))
		}
	}

	if direct && len(change.Added) > 0 {
		if impact.Level != domain.ImpactHigh {
			impact.Level = domain.ImpactHigh
		}
		for _, id := range change.Added {
			impact.Actions = append(impact.Actions,
				fmt.Sprintf("author %s coverage for new %s identifier %s", down, kind, id))
		}
	}

	for old, renamed := range change.Renames {
		if refSet[old] {
			if impact.Level == domain.ImpactLow {
				impact.Level = domain.ImpactMedium
			}
			impact.Actions = append(impact.Actions,
				fmt.Sprintf("update %s references from %s to %s", down, old, renamed))
		}
	}

	for _, id := range change.Modified {
		if refSet[id] {
			if impact.Level == domain.ImpactLow {
				impact.Level = domain.ImpactMedium
			}
			impact.Actions = append(impact.Actions,
				fmt.Sprintf("review %s entries referencing modified %s", down, id))
		}
	}

	if len(impact.Actions) == 0 {
		impact.Actions = []string{"no action required"}
	}
	return impact
}

// PropagateChange applies automatic, safe propagations for a change to one
// kind and reports everything that still needs manual authoring.
//
// Safe propagations are limited to creating a stub downstream artifact for
// a newly added upstream identifier and updating stored references when an
// identifier is renamed with an explicit mapping. A referenced identifier
// that disappeared with no rename mapping becomes a Conflict for the
// caller to resolve; it is never auto-resolved.
func (e *Engine) PropagateChange(ctx context.Context, kind domain.Kind, change domain.ChangeSet) (*domain.PropagationResult, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("failed to propagate change: %w: %q", pipelineerrors.ErrUnknownKind, kind)
	}

	upstream, err := e.store.Get(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to propagate change: %w", err)
	}

	result := &domain.PropagationResult{
		AppliedActions:       []string{},
		ManualReviewRequired: []string{},
	}

	for _, down := range e.graph.Downstream(kind) {
		if err := e.propagateTo(ctx, upstream, down, change, result); err != nil {
			return nil, err
		}
	}

	e.log.Info().
		Str("kind", kind.String()).
		Int("applied", len(result.AppliedActions)).
		Int("manual", len(result.ManualReviewRequired)).
		Int("conflicts", len(result.Conflicts)).
		Msg("change propagated")
	return result, nil
}

// propagateTo applies safe propagations from one upstream artifact to one
// direct downstream kind.
func (e *Engine) propagateTo(ctx context.Context, upstream *domain.Artifact, down domain.Kind, change domain.ChangeSet, result *domain.PropagationResult) error {
	target, err := e.store.Get(ctx, down)
	switch {
	case err == nil:
	case stderrors.Is(err, pipelineerrors.ErrArtifactNotFound):
		// Stub creation is the one safe propagation for a kind that has
		// no artifact yet.
		if len(change.Added) > 0 {
			if err := e.createStub(ctx, upstream, down, change.Added); err != nil {
				return err
			}
			result.AppliedActions = append(result.AppliedActions,
				fmt.Sprintf("created stub %s artifact referencing %v", down, change.Added))
		}
		return nil
	default:
		return fmt.Errorf("failed to propagate change to %s: %w", down, err)
	}

	dirty := false

	// Renames with explicit mappings are safe to apply in place.
	for old, renamed := range change.Renames {
		refs := target.References[upstream.Kind]
		for i, id := range refs {
			if id == old {
				refs[i] = renamed
				dirty = true
				result.AppliedActions = append(result.AppliedActions,
					fmt.Sprintf("updated %s reference %s to %s", down, old, renamed))
			}
		}
	}

	// Removals without a rename mapping are conflicts; report, never fix.
	conflictsBefore := len(result.Conflicts)
	refSet := make(map[string]bool, len(target.References[upstream.Kind]))
	for _, id := range target.References[upstream.Kind] {
		refSet[id] = true
	}
	for _, id := range change.Removed {
		if _, renamed := change.Renames[id]; renamed {
			continue
		}
		if refSet[id] {
			result.Conflicts = append(result.Conflicts, domain.Conflict{
				ID:              id,
				UpstreamKind:    upstream.Kind,
				ReferencingKind: down,
			})
			result.ManualReviewRequired = append(result.ManualReviewRequired,
				fmt.Sprintf("%s references removed %s identifier %s", down, upstream.Kind, id))
		}
	}

	// New identifiers on an existing downstream artifact need authoring,
	// not a stub.
	for _, id := range change.Added {
		result.ManualReviewRequired = append(result.ManualReviewRequired,
			fmt.Sprintf("author %s coverage for new %s identifier %s", down, upstream.Kind, id))
	}

	// Modified identifiers always need re-authoring downstream.
	for _, id := range change.Modified {
		if refSet[id] {
			result.ManualReviewRequired = append(result.ManualReviewRequired,
				fmt.Sprintf("review %s entries referencing modified %s", down, id))
		}
	}

	// Kept orphans survive propagation as residual warnings.
	for _, id := range target.KeptOrphans[upstream.Kind] {
		result.ResidualWarnings = append(result.ResidualWarnings,
			fmt.Sprintf("%s keeps orphaned %s reference %s", down, upstream.Kind, id))
	}

	if dirty && len(result.Conflicts) == conflictsBefore {
		// A clean reference update re-synchronizes against the current
		// upstream content. Conflicts on other downstream kinds do not
		// hold this one back.
		if target.UpstreamHashes == nil {
			target.UpstreamHashes = make(map[domain.Kind]string)
		}
		target.UpstreamHashes[upstream.Kind] = upstream.ContentHash
	}
	if dirty {
		target.ModifiedAt = e.clock.Now().UTC()
		if err := e.store.Save(ctx, target); err != nil {
			return fmt.Errorf("failed to persist propagated %s: %w", down, err)
		}
	}
	return nil
}

// createStub persists a placeholder downstream artifact referencing newly
// added upstream identifiers. Stubs always require manual authoring before
// they validate strictly.
func (e *Engine) createStub(ctx context.Context, upstream *domain.Artifact, down domain.Kind, added []string) error {
	stub := &domain.Artifact{
		Kind:        down,
		Version:     "0.1.0",
		ModifiedAt:  e.clock.Now().UTC(),
		ModifiedBy:  "sync-engine",
		Stub:        true,
		Defines:     []string{},
		References:  map[domain.Kind][]string{upstream.Kind: append([]string(nil), added...)},
		ContentHash: artifact.HashContent([]byte{}),
		UpstreamHashes: map[domain.Kind]string{
			upstream.Kind: upstream.ContentHash,
		},
	}
	if err := e.store.Save(ctx, stub); err != nil {
		return fmt.Errorf("failed to create stub %s: %w", down, err)
	}
	return nil
}

// addMissing appends ids to the missing-reference map for one upstream kind.
func addMissing(m map[domain.Kind][]string, kind domain.Kind, ids []string) map[domain.Kind][]string {
	if m == nil {
		m = make(map[domain.Kind][]string)
	}
	m[kind] = append(m[kind], ids...)
	return m
}
