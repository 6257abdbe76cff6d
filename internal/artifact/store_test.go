package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func testArtifact(kind domain.Kind, defines ...string) *domain.Artifact {
	return &domain.Artifact{
		Kind:        kind,
		Version:     "1.0.0",
		ContentHash: HashContent([]byte(string(kind))),
		ModifiedBy:  "test",
		Defines:     defines,
	}
}

func TestFileStore_SaveAndGet(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	saved := testArtifact(domain.KindRequirements, "FR-001", "ST-001")
	require.NoError(t, store.Save(ctx, saved))

	got, err := store.Get(ctx, domain.KindRequirements)
	require.NoError(t, err)
	assert.Equal(t, domain.KindRequirements, got.Kind)
	assert.Equal(t, "1.0.0", got.Version)
	assert.Equal(t, []string{"FR-001", "ST-001"}, got.Defines)
	assert.Equal(t, constants.ArtifactSchemaVersion, got.SchemaVersion)
}

func TestFileStore_Save_Replaces(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testArtifact(domain.KindFlow, "FLOW-001")))

	updated := testArtifact(domain.KindFlow, "FLOW-001", "FLOW-002")
	updated.Version = "1.1.0"
	require.NoError(t, store.Save(ctx, updated))

	got, err := store.Get(ctx, domain.KindFlow)
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.Version)
	assert.Equal(t, []string{"FLOW-001", "FLOW-002"}, got.Defines)
}

func TestFileStore_Save_Invalid(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	err := store.Save(ctx, nil)
	assert.ErrorIs(t, err, pipelineerrors.ErrEmptyValue)

	err = store.Save(ctx, testArtifact(domain.Kind("bogus")))
	assert.ErrorIs(t, err, pipelineerrors.ErrUnknownKind)
}

func TestFileStore_Get_NotFound(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Get(context.Background(), domain.KindDecision)
	assert.ErrorIs(t, err, pipelineerrors.ErrArtifactNotFound)
}

func TestFileStore_Get_Corrupted(t *testing.T) {
	t.Parallel()

	baseDir := t.TempDir()
	store, err := NewFileStore(baseDir)
	require.NoError(t, err)

	dir := filepath.Join(baseDir, constants.ArtifactsDir)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.json"), []byte("{not json"), 0o600))

	_, err = store.Get(context.Background(), domain.KindFlow)
	assert.ErrorIs(t, err, pipelineerrors.ErrStateCorrupted)
}

func TestFileStore_List_CanonicalOrder(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	// Save out of canonical order.
	require.NoError(t, store.Save(ctx, testArtifact(domain.KindTaskSet, "TASK-001")))
	require.NoError(t, store.Save(ctx, testArtifact(domain.KindRequirements, "FR-001")))
	require.NoError(t, store.Save(ctx, testArtifact(domain.KindFlow, "FLOW-001")))

	artifacts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.Equal(t, domain.KindRequirements, artifacts[0].Kind)
	assert.Equal(t, domain.KindFlow, artifacts[1].Kind)
	assert.Equal(t, domain.KindTaskSet, artifacts[2].Kind)
}

func TestFileStore_List_Empty(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	artifacts, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}

func TestFileStore_Delete(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testArtifact(domain.KindScaffold, "SCAFFOLD-001")))
	require.NoError(t, store.Delete(ctx, domain.KindScaffold))

	_, err := store.Get(ctx, domain.KindScaffold)
	assert.ErrorIs(t, err, pipelineerrors.ErrArtifactNotFound)

	err = store.Delete(ctx, domain.KindScaffold)
	assert.ErrorIs(t, err, pipelineerrors.ErrArtifactNotFound)
}

func TestFileStore_Exists(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	exists, err := store.Exists(ctx, domain.KindJourney)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Save(ctx, testArtifact(domain.KindJourney, "JRN-001")))

	exists, err = store.Exists(ctx, domain.KindJourney)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileStore_ContextCanceled(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Save(ctx, testArtifact(domain.KindFlow)))

	_, err := store.Get(ctx, domain.KindFlow)
	assert.Error(t, err)

	_, err = store.List(ctx)
	assert.Error(t, err)
}

func TestHashContent_Deterministic(t *testing.T) {
	t.Parallel()

	a := HashContent([]byte(`{"features": []}`))
	b := HashContent([]byte(`{"features": []}`))
	c := HashContent([]byte(`{"features": [{}]}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64, "sha256 hex digest")
}
