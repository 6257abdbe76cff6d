package session

import (
	"context"
	"encoding/json"
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

// Store defines the interface for session log persistence. The log is a
// single document replaced atomically on every transition; there is no
// partial update surface.
type Store interface {
	// Load reads the session log. A missing file yields an empty log, not
	// an error: a fresh project simply has no sessions yet.
	Load(ctx context.Context) (*domain.SessionLog, error)

	// Save persists the session log atomically, replacing the prior state.
	Save(ctx context.Context, log *domain.SessionLog) error
}

// FileStore implements Store using a single JSON document on disk.
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

// Load reads the session log from disk.
func (s *FileStore) Load(ctx context.Context) (*domain.SessionLog, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.logFilePath()) //#nosec G304 -- path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.SessionLog{
				Tasks:         make(map[string]*domain.Task),
				SchemaVersion: constants.SessionLogSchemaVersion,
			}, nil
		}
		return nil, fmt.Errorf("failed to read session log: %w", err)
	}

	var log domain.SessionLog
	if err := json.Unmarshal(data, &log); err != nil {
		// A truncated or garbled log means interrupted-write recovery is
		// needed; callers must not guess at partial state.
		return nil, fmt.Errorf("session log: %w: %v", pipelineerrors.ErrStateCorrupted, err)
	}
	if log.Tasks == nil {
		log.Tasks = make(map[string]*domain.Task)
	}
	return &log, nil
}

// Save persists the session log atomically.
func (s *FileStore) Save(ctx context.Context, log *domain.SessionLog) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if log == nil {
		return fmt.Errorf("failed to save session log: log %w", pipelineerrors.ErrEmptyValue)
	}

	if err := os.MkdirAll(s.baseDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	lockFile, err := s.acquireLock(ctx)
	if err != nil {
		return fmt.Errorf("failed to save session log: %w", err)
	}
	defer func() { _ = s.releaseLock(lockFile) }()

	log.SchemaVersion = constants.SessionLogSchemaVersion

	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to save session log: %w", err)
	}
	if err := atomicWrite(s.logFilePath(), data); err != nil {
		return fmt.Errorf("failed to save session log: %w", err)
	}
	return nil
}

// logFilePath returns the path to the session log document.
func (s *FileStore) logFilePath() string {
	return filepath.Join(s.baseDir, constants.SessionLogFileName)
}

// lockFilePath returns the path to the session log's lock file.
func (s *FileStore) lockFilePath() string {
	return filepath.Join(s.baseDir, constants.SessionLogFileName+".lock")
}

// acquireLock acquires an exclusive file lock over the session log.
// It respects context cancellation during the lock acquisition retry loop.
func (s *FileStore) acquireLock(ctx context.Context) (*os.File, error) {
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
