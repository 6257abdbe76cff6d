package xref

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/pipeline/internal/artifact"
	"github.com/forgeworks/pipeline/internal/domain"
	"github.com/forgeworks/pipeline/internal/graph"
)

func newTestChecker(t *testing.T) (*Checker, artifact.Store) {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return NewChecker(graph.Canonical(), store), store
}

func saveArtifact(t *testing.T, store artifact.Store, a *domain.Artifact) {
	t.Helper()
	require.NoError(t, store.Save(context.Background(), a))
}

func TestChecker_Check_EmptySet(t *testing.T) {
	t.Parallel()

	checker, _ := newTestChecker(t)

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Checks)
}

func TestChecker_Check_AllResolved(t *testing.T) {
	t.Parallel()

	checker, store := newTestChecker(t)

	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindRequirements,
		Version: "1.0.0",
		Defines: []string{"FR-001", "ST-001"},
	})
	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindFlow,
		Version: "1.0.0",
		Defines: []string{"FLOW-001"},
		References: map[domain.Kind][]string{
			domain.KindRequirements: {"FR-001", "ST-001"},
		},
	})

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, VerdictPass, report.Checks[0].Verdict)
	assert.Equal(t, domain.KindRequirements, report.Checks[0].FromKind)
	assert.Equal(t, domain.KindFlow, report.Checks[0].ToKind)
}

func TestChecker_Check_MissingIdentifier(t *testing.T) {
	t.Parallel()

	checker, store := newTestChecker(t)

	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindRequirements,
		Version: "1.0.0",
		Defines: []string{"FR-001"},
	})
	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindFlow,
		Version: "1.0.0",
		Defines: []string{"FLOW-001"},
		References: map[domain.Kind][]string{
			domain.KindRequirements: {"FR-001", "FR-999"},
		},
	})

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, VerdictFail, report.Checks[0].Verdict)
	assert.Equal(t, []string{"FR-999"}, report.Checks[0].MissingIDs)
	assert.Contains(t, report.Checks[0].Detail, "FR-999")
}

func TestChecker_Check_MissingUpstreamArtifact(t *testing.T) {
	t.Parallel()

	checker, store := newTestChecker(t)

	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindFlow,
		Version: "1.0.0",
		Defines: []string{"FLOW-001"},
		References: map[domain.Kind][]string{
			domain.KindRequirements: {"FR-001"},
		},
	})

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, VerdictFail, report.Checks[0].Verdict)
	assert.Equal(t, []string{"FR-001"}, report.Checks[0].MissingIDs)
	assert.Contains(t, report.Checks[0].Detail, "no requirements artifact exists")
}

func TestChecker_Check_KeptOrphansDowngradeToWarning(t *testing.T) {
	t.Parallel()

	checker, store := newTestChecker(t)

	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindRequirements,
		Version: "1.0.0",
		Defines: []string{"FR-001"},
	})
	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindFlow,
		Version: "1.0.0",
		Defines: []string{"FLOW-001"},
		References: map[domain.Kind][]string{
			domain.KindRequirements: {"FR-001", "FR-002"},
		},
		KeptOrphans: map[domain.Kind][]string{
			domain.KindRequirements: {"FR-002"},
		},
	})

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid, "kept orphans do not fail the check")
	require.Len(t, report.Checks, 1)
	assert.Equal(t, VerdictWarning, report.Checks[0].Verdict)
	assert.Equal(t, []string{"FR-002"}, report.Checks[0].MissingIDs)
	assert.Contains(t, report.Checks[0].Detail, "orphaned")
}

func TestChecker_Check_UndeclaredEdgeWarns(t *testing.T) {
	t.Parallel()

	checker, store := newTestChecker(t)

	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindScaffold,
		Version: "1.0.0",
		Defines: []string{"SCAFFOLD-001"},
	})
	// Requirements is upstream of everything; it referencing scaffold
	// identifiers has no declared edge.
	saveArtifact(t, store, &domain.Artifact{
		Kind:    domain.KindRequirements,
		Version: "1.0.0",
		Defines: []string{"FR-001"},
		References: map[domain.Kind][]string{
			domain.KindScaffold: {"SCAFFOLD-001"},
		},
	})

	report, err := checker.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, VerdictWarning, report.Checks[0].Verdict)
	assert.Contains(t, report.Checks[0].Detail, "without a declared dependency edge")
}

func TestChecker_Check_DeterministicOrder(t *testing.T) {
	t.Parallel()

	checker, store := newTestChecker(t)

	saveArtifact(t, store, &domain.Artifact{
		Kind: domain.KindRequirements, Version: "1.0.0", Defines: []string{"FR-001", "ST-001"},
	})
	saveArtifact(t, store, &domain.Artifact{
		Kind: domain.KindFlow, Version: "1.0.0", Defines: []string{"FLOW-001"},
		References: map[domain.Kind][]string{domain.KindRequirements: {"FR-001"}},
	})
	saveArtifact(t, store, &domain.Artifact{
		Kind: domain.KindTaskSet, Version: "1.0.0", Defines: []string{"TASK-001"},
		References: map[domain.Kind][]string{
			domain.KindFlow:         {"FLOW-001"},
			domain.KindRequirements: {"ST-001"},
		},
	})

	for i := 0; i < 5; i++ {
		report, err := checker.Check(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Checks, 3)

		// Ordered by downstream kind, then upstream kind.
		assert.Equal(t, domain.KindFlow, report.Checks[0].ToKind)
		assert.Equal(t, domain.KindTaskSet, report.Checks[1].ToKind)
		assert.Equal(t, domain.KindRequirements, report.Checks[1].FromKind)
		assert.Equal(t, domain.KindTaskSet, report.Checks[2].ToKind)
		assert.Equal(t, domain.KindFlow, report.Checks[2].FromKind)
	}
}
