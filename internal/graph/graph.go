// Package graph defines the static dependency graph over artifact kinds.
//
// An edge (from, to) means documents of kind "to" may reference identifiers
// defined by kind "from". The edge set is fixed configuration validated to
// be acyclic at construction, never derived at runtime.
package graph

import (
	"fmt"

	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// Edge is a single static dependency relation between two artifact kinds.
type Edge struct {
	From domain.Kind
	To   domain.Kind
}

// Graph is an immutable directed acyclic graph over artifact kinds.
type Graph struct {
	downstream map[domain.Kind][]domain.Kind
	upstream   map[domain.Kind][]domain.Kind
}

// canonicalEdges is the pipeline's configured edge set. The chain follows
// the canonical kind ordering; skip-level edges carry identifier families
// that bypass intermediate stages (features referenced directly by task
// sets and decisions, entities referenced by decisions, and so on).
var canonicalEdges = []Edge{
	{domain.KindRequirements, domain.KindFlow},
	{domain.KindRequirements, domain.KindJourney},
	{domain.KindRequirements, domain.KindTaskSet},
	{domain.KindRequirements, domain.KindDecision},
	{domain.KindFlow, domain.KindDataModel},
	{domain.KindFlow, domain.KindJourney},
	{domain.KindFlow, domain.KindTaskSet},
	{domain.KindDataModel, domain.KindJourney},
	{domain.KindDataModel, domain.KindTaskSet},
	{domain.KindDataModel, domain.KindDecision},
	{domain.KindJourney, domain.KindTaskSet},
	{domain.KindTaskSet, domain.KindDecision},
	{domain.KindDecision, domain.KindScaffold},
}

// Canonical returns the pipeline's configured kind graph.
// The edge set is static, so construction cannot fail.
func Canonical() *Graph {
	g, err := New(canonicalEdges)
	if err != nil {
		// The canonical edge set is verified acyclic by tests.
		panic(fmt.Sprintf("canonical kind graph invalid: %v", err))
	}
	return g
}

// New builds a graph from the given edges, validating that every kind is
// known and the result is acyclic.
func New(edges []Edge) (*Graph, error) {
	g := &Graph{
		downstream: make(map[domain.Kind][]domain.Kind),
		upstream:   make(map[domain.Kind][]domain.Kind),
	}
	for _, e := range edges {
		if !e.From.IsValid() {
			return nil, fmt.Errorf("%w: %q", pipelineerrors.ErrUnknownKind, e.From)
		}
		if !e.To.IsValid() {
			return nil, fmt.Errorf("%w: %q", pipelineerrors.ErrUnknownKind, e.To)
		}
		if e.From == e.To {
			return nil, fmt.Errorf("%w: self-edge on %q", pipelineerrors.ErrInvalidArgument, e.From)
		}
		if g.HasEdge(e.From, e.To) {
			continue
		}
		g.downstream[e.From] = append(g.downstream[e.From], e.To)
		g.upstream[e.To] = append(g.upstream[e.To], e.From)
	}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// HasEdge reports whether documents of kind "to" may reference identifiers
// defined by kind "from".
func (g *Graph) HasEdge(from, to domain.Kind) bool {
	for _, k := range g.downstream[from] {
		if k == to {
			return true
		}
	}
	return false
}

// Downstream returns the kinds directly referencing the given kind, in
// canonical order.
func (g *Graph) Downstream(kind domain.Kind) []domain.Kind {
	return ordered(g.downstream[kind])
}

// Upstream returns the kinds the given kind directly references, in
// canonical order.
func (g *Graph) Upstream(kind domain.Kind) []domain.Kind {
	return ordered(g.upstream[kind])
}

// Reachable returns every kind transitively downstream of the given kind,
// in canonical order. The given kind itself is excluded.
func (g *Graph) Reachable(kind domain.Kind) []domain.Kind {
	seen := make(map[domain.Kind]bool)
	var visit func(domain.Kind)
	visit = func(k domain.Kind) {
		for _, next := range g.downstream[k] {
			if !seen[next] {
				seen[next] = true
				visit(next)
			}
		}
	}
	visit(kind)

	result := make([]domain.Kind, 0, len(seen))
	for _, k := range domain.Kinds() {
		if seen[k] {
			result = append(result, k)
		}
	}
	return result
}

// checkAcyclic verifies the edge set has no cycles using Kahn's algorithm.
func (g *Graph) checkAcyclic() error {
	indegree := make(map[domain.Kind]int)
	for _, k := range domain.Kinds() {
		indegree[k] = len(g.upstream[k])
	}

	var queue []domain.Kind
	for _, k := range domain.Kinds() {
		if indegree[k] == 0 {
			queue = append(queue, k)
		}
	}

	visited := 0
	for len(queue) > 0 {
		k := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range g.downstream[k] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(domain.Kinds()) {
		return fmt.Errorf("%w: kind graph contains a cycle", pipelineerrors.ErrInvalidArgument)
	}
	return nil
}

// ordered returns the given kinds sorted into canonical kind order.
func ordered(kinds []domain.Kind) []domain.Kind {
	set := make(map[domain.Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	result := make([]domain.Kind, 0, len(kinds))
	for _, k := range domain.Kinds() {
		if set[k] {
			result = append(result, k)
		}
	}
	return result
}
