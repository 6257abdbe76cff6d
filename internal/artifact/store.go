// Package artifact provides artifact persistence for the pipeline.
// This file implements the storage layer for artifact envelope documents,
// one JSON file per kind, with atomic writes and file locking for data
// integrity.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/ctxutil"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
	"github.com/forgeworks/pipeline/internal/flock"
)

// LockTimeout is the maximum duration to wait for acquiring a file lock.
const LockTimeout = 5 * time.Second

// Directory and file permission constants.
const (
	dirPerm  = 0o750 // Secure directory permissions
	filePerm = 0o600 // Secure file permissions
)

// Store defines the interface for artifact persistence operations.
// Artifacts are mutated only by replacing the whole envelope; there is no
// partial update surface.
type Store interface {
	// Save persists an artifact envelope, replacing any prior version.
	Save(ctx context.Context, a *domain.Artifact) error

	// Get retrieves the artifact for a kind.
	// Returns ErrArtifactNotFound if no document exists.
	Get(ctx context.Context, kind domain.Kind) (*domain.Artifact, error)

	// List returns all existing artifacts in canonical kind order.
	List(ctx context.Context) ([]*domain.Artifact, error)

	// Delete retires an artifact from the pipeline.
	Delete(ctx context.Context, kind domain.Kind) error

	// Exists reports whether an artifact exists for the kind.
	Exists(ctx context.Context, kind domain.Kind) (bool, error)
}

// FileStore implements Store using the local filesystem.
type FileStore struct {
	baseDir string // Usually <project>/.pipeline
}

// NewFileStore creates a FileStore rooted at the given state directory.
// If baseDir is empty, uses .pipeline in the working directory.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = filepath.Join(wd, constants.PipelineHome)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// HashContent returns the hex-encoded content hash used to track upstream
// versions for sync status.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save persists an artifact envelope, replacing any prior version.
func (s *FileStore) Save(ctx context.Context, a *domain.Artifact) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if a == nil {
		return fmt.Errorf("failed to save artifact: artifact %w", pipelineerrors.ErrEmptyValue)
	}
	if !a.Kind.IsValid() {
		return fmt.Errorf("failed to save artifact: %w: %q", pipelineerrors.ErrUnknownKind, a.Kind)
	}

	if err := os.MkdirAll(s.artifactsDir(), dirPerm); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}

	lockFile, err := s.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to save artifact '%s': %w", a.Kind, err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	a.SchemaVersion = constants.ArtifactSchemaVersion

	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save artifact '%s': %w", a.Kind, err)
	}

	if err := atomicWrite(s.artifactFilePath(a.Kind), data); err != nil {
		return fmt.Errorf("failed to save artifact '%s': %w", a.Kind, err)
	}
	return nil
}

// Get retrieves the artifact for a kind.
func (s *FileStore) Get(ctx context.Context, kind domain.Kind) (*domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("failed to get artifact: %w: %q", pipelineerrors.ErrUnknownKind, kind)
	}

	data, err := os.ReadFile(s.artifactFilePath(kind)) //#nosec G304 -- path is constructed from a fixed kind set
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to get artifact '%s': %w", kind, pipelineerrors.ErrArtifactNotFound)
		}
		return nil, fmt.Errorf("failed to read artifact '%s': %w", kind, err)
	}

	var a domain.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		// Corrupted state is fatal for the caller: surface the raw parse
		// failure rather than guessing at recovery.
		return nil, fmt.Errorf("artifact '%s': %w: %v", kind, pipelineerrors.ErrStateCorrupted, err)
	}
	return &a, nil
}

// List returns all existing artifacts in canonical kind order.
func (s *FileStore) List(ctx context.Context) ([]*domain.Artifact, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	artifacts := make([]*domain.Artifact, 0, len(domain.Kinds()))
	for _, kind := range domain.Kinds() {
		if err := ctxutil.Canceled(ctx); err != nil {
			return nil, err
		}
		a, err := s.Get(ctx, kind)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// Delete retires an artifact from the pipeline.
func (s *FileStore) Delete(ctx context.Context, kind domain.Kind) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if !kind.IsValid() {
		return fmt.Errorf("failed to delete artifact: %w: %q", pipelineerrors.ErrUnknownKind, kind)
	}

	path := s.artifactFilePath(kind)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("failed to delete artifact '%s': %w", kind, pipelineerrors.ErrArtifactNotFound)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete artifact '%s': %w", kind, err)
	}
	return nil
}

// Exists reports whether an artifact exists for the kind.
func (s *FileStore) Exists(ctx context.Context, kind domain.Kind) (bool, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return false, err
	}
	if !kind.IsValid() {
		return false, fmt.Errorf("failed to check artifact: %w: %q", pipelineerrors.ErrUnknownKind, kind)
	}
	if _, err := os.Stat(s.artifactFilePath(kind)); os.IsNotExist(err) {
		return false, nil
	}
	return true, nil
}

// artifactsDir returns the path to the artifacts directory.
func (s *FileStore) artifactsDir() string {
	return filepath.Join(s.baseDir, constants.ArtifactsDir)
}

// artifactFilePath returns the path to a kind's JSON document.
func (s *FileStore) artifactFilePath(kind domain.Kind) string {
	return filepath.Join(s.artifactsDir(), string(kind)+".json")
}

// lockFilePath returns the path to the artifact set's lock file.
func (s *FileStore) lockFilePath() string {
	return filepath.Join(s.artifactsDir(), ".lock")
}

// isNotFound reports whether err wraps ErrArtifactNotFound.
func isNotFound(err error) bool {
	return stderrors.Is(err, pipelineerrors.ErrArtifactNotFound)
}

// acquireLock acquires an exclusive file lock over the artifact set.
// It respects context cancellation during the lock acquisition retry loop.
func (s *FileStore) acquireLock(ctx context.Context) (*os.File, error) {
	if err := os.MkdirAll(s.artifactsDir(), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(s.lockFilePath(), os.O_CREATE|os.O_RDWR, filePerm) //#nosec G302,G304 -- lock file needs write access, path is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	deadline := time.Now().Add(LockTimeout)
	for {
		select {
		case <-ctx.Done():
			_ = f.Close()
			return nil, ctx.Err()
		default:
		}

		if err := flock.Exclusive(f.Fd()); err == nil {
			return f, nil
		}

		if time.Now().After(deadline) {
			_ = f.Close()
			return nil, fmt.Errorf("failed to acquire lock: %w", pipelineerrors.ErrLockTimeout)
		}

		time.Sleep(50 * time.Millisecond)
	}
}

// releaseLock releases a file lock.
func (s *FileStore) releaseLock(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := flock.Unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
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

	// Sync to disk (ensure data is persisted before rename)
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
