// Package xref validates that identifiers referenced by one artifact
// resolve to entries defined by the correct upstream artifact, per the
// static kind graph.
//
// Checks fan out per referencing artifact; results are deterministic and
// ordered by canonical kind order regardless of completion order.
package xref

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/forgeworks/pipeline/internal/artifact"
	"github.com/forgeworks/pipeline/internal/domain"
	"github.com/forgeworks/pipeline/internal/graph"
)

// Verdict grades the outcome of one cross-reference check.
type Verdict string

// Check verdicts.
const (
	// VerdictPass means every referenced identifier resolved.
	VerdictPass Verdict = "pass"

	// VerdictWarning means the check found something questionable that
	// does not break the pipeline (kept orphans, undeclared edges).
	VerdictWarning Verdict = "warning"

	// VerdictFail means a referenced identifier does not exist in the
	// current upstream artifact.
	VerdictFail Verdict = "fail"
)

// Check is the result of validating one artifact's references against one
// upstream kind.
type Check struct {
	// FromKind is the upstream kind that should define the identifiers.
	FromKind domain.Kind `json:"from_kind"`

	// ToKind is the referencing downstream kind.
	ToKind domain.Kind `json:"to_kind"`

	// Verdict is the graded outcome.
	Verdict Verdict `json:"verdict"`

	// Detail is a human-readable explanation of the outcome.
	Detail string `json:"detail"`

	// MissingIDs lists referenced identifiers that did not resolve.
	MissingIDs []string `json:"missing_ids,omitempty"`
}

// Report aggregates all cross-reference checks for the artifact set.
type Report struct {
	// Valid is true when no check failed.
	Valid bool `json:"valid"`

	// Checks holds one entry per (upstream, downstream) reference pair,
	// in canonical kind order.
	Checks []Check `json:"checks"`
}

// Checker validates the full artifact set against the kind graph.
type Checker struct {
	graph *graph.Graph
	store artifact.Store
}

// NewChecker creates a Checker over the given graph and store.
func NewChecker(g *graph.Graph, store artifact.Store) *Checker {
	return &Checker{graph: g, store: store}
}

// Check verifies every reference in every existing artifact. Artifacts not
// yet created are skipped: there is nothing to validate yet. A missing
// identifier is a fail only when the referencing kind is downstream of the
// kind that should define it; kept orphans are reported as warnings.
func (c *Checker) Check(ctx context.Context) (*Report, error) {
	artifacts, err := c.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check cross-references: %w", err)
	}

	byKind := make(map[domain.Kind]*domain.Artifact, len(artifacts))
	for _, a := range artifacts {
		byKind[a.Kind] = a
	}

	results := make([][]Check, len(artifacts))
	g, gctx := errgroup.WithContext(ctx)
	for i, a := range artifacts {
		i, a := i, a
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			results[i] = c.checkArtifact(a, byKind)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to check cross-references: %w", err)
	}

	report := &Report{Valid: true}
	for _, checks := range results {
		report.Checks = append(report.Checks, checks...)
	}
	sortChecks(report.Checks)
	for _, check := range report.Checks {
		if check.Verdict == VerdictFail {
			report.Valid = false
			break
		}
	}
	return report, nil
}

// checkArtifact validates one artifact's references against every upstream
// kind it declares.
func (c *Checker) checkArtifact(a *domain.Artifact, byKind map[domain.Kind]*domain.Artifact) []Check {
	var checks []Check

	for _, fromKind := range sortedRefKinds(a.References) {
		ids := a.References[fromKind]
		check := Check{FromKind: fromKind, ToKind: a.Kind}

		if !c.graph.HasEdge(fromKind, a.Kind) {
			check.Verdict = VerdictWarning
			check.Detail = fmt.Sprintf("%s references %s without a declared dependency edge", a.Kind, fromKind)
			checks = append(checks, check)
			continue
		}

		upstream, ok := byKind[fromKind]
		if !ok {
			check.Verdict = VerdictFail
			check.Detail = fmt.Sprintf("%s references %d %s identifiers but no %s artifact exists", a.Kind, len(ids), fromKind, fromKind)
			check.MissingIDs = append([]string(nil), ids...)
			checks = append(checks, check)
			continue
		}

		defined := upstream.DefinesSet()
		kept := keptSet(a, fromKind)
		var missing, orphaned []string
		for _, id := range ids {
			switch {
			case defined[id]:
			case kept[id]:
				orphaned = append(orphaned, id)
			default:
				missing = append(missing, id)
			}
		}

		switch {
		case len(missing) > 0:
			check.Verdict = VerdictFail
			check.Detail = fmt.Sprintf("%d of %d %s identifiers referenced by %s do not exist in %s: %s",
				len(missing), len(ids), fromKind, a.Kind, fromKind, strings.Join(missing, ", "))
			check.MissingIDs = missing
		case len(orphaned) > 0:
			check.Verdict = VerdictWarning
			check.Detail = fmt.Sprintf("%s keeps %d orphaned %s reference(s): %s",
				a.Kind, len(orphaned), fromKind, strings.Join(orphaned, ", "))
			check.MissingIDs = orphaned
		default:
			check.Verdict = VerdictPass
			check.Detail = fmt.Sprintf("all %d %s identifiers referenced by %s exist in %s",
				len(ids), fromKind, a.Kind, fromKind)
		}
		checks = append(checks, check)
	}
	return checks
}

// keptSet returns the artifact's kept orphans for one upstream kind as a set.
func keptSet(a *domain.Artifact, fromKind domain.Kind) map[string]bool {
	ids := a.KeptOrphans[fromKind]
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// sortedRefKinds returns the reference map's keys in canonical kind order.
func sortedRefKinds(refs map[domain.Kind][]string) []domain.Kind {
	var kinds []domain.Kind
	for _, k := range domain.Kinds() {
		if _, ok := refs[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// sortChecks orders checks by downstream kind, then upstream kind, in
// canonical order.
func sortChecks(checks []Check) {
	rank := make(map[domain.Kind]int, len(domain.Kinds()))
	for i, k := range domain.Kinds() {
		rank[k] = i
	}
	sort.SliceStable(checks, func(i, j int) bool {
		if rank[checks[i].ToKind] != rank[checks[j].ToKind] {
			return rank[checks[i].ToKind] < rank[checks[j].ToKind]
		}
		return rank[checks[i].FromKind] < rank[checks[j].FromKind]
	})
}
