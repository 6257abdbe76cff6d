// Package history maintains the human-readable project history file. Each
// completed session appends one markdown section summarizing what the
// session did; the file is never rewritten, only appended to.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/ctxutil"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// Appender writes session summaries to history.md.
type Appender struct {
	baseDir string // Usually <project>/.pipeline
}

// NewAppender creates an Appender rooted at the given state directory.
// If baseDir is empty, uses .pipeline in the working directory.
func NewAppender(baseDir string) (*Appender, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = filepath.Join(wd, constants.PipelineHome)
	}
	return &Appender{baseDir: baseDir}, nil
}

// Append writes one markdown section for an ended session. Only terminal
// sessions are recorded; appending an active session is an error.
func (a *Appender) Append(ctx context.Context, sess *domain.Session, tasks map[string]*domain.Task) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("failed to append history: session %w", pipelineerrors.ErrEmptyValue)
	}
	if sess.Status == constants.SessionStatusActive {
		return fmt.Errorf("failed to append history for session '%s': session still active: %w",
			sess.ID, pipelineerrors.ErrInvalidTransition)
	}

	if err := os.MkdirAll(a.baseDir, dirPerm); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	f, err := os.OpenFile(a.filePath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm) //#nosec G304 -- path is constructed internally
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.WriteString(render(sess, tasks)); err != nil {
		return fmt.Errorf("failed to append history for session '%s': %w", sess.ID, err)
	}
	return nil
}

// filePath returns the path to the history document.
func (a *Appender) filePath() string {
	return filepath.Join(a.baseDir, constants.HistoryFileName)
}

// render formats one session as a markdown section.
func render(sess *domain.Session, tasks map[string]*domain.Task) string {
	var b strings.Builder

	ended := sess.StartedAt
	if sess.EndedAt != nil {
		ended = *sess.EndedAt
	}
	fmt.Fprintf(&b, "## %s - %s (%s)\n\n", ended.Format("2006-01-02 15:04"), sess.Plan, sess.Status)
	fmt.Fprintf(&b, "- Session: `%s`\n", sess.ID)
	if sess.Branch != "" {
		fmt.Fprintf(&b, "- Branch: `%s`\n", sess.Branch)
	}
	fmt.Fprintf(&b, "- Tasks: %d completed, %d failed, %d attempted\n",
		sess.TasksCompleted, sess.TasksFailed, len(sess.TasksAttempted))
	fmt.Fprintf(&b, "- Commits: %d\n", sess.Commits)
	if sess.Summary != "" {
		fmt.Fprintf(&b, "- Summary: %s\n", sess.Summary)
	}

	attempted := attemptedTasks(sess, tasks)
	if len(attempted) > 0 {
		b.WriteString("\n")
		for _, t := range attempted {
			line := fmt.Sprintf("- `%s` %s", t.ID, t.Status)
			switch {
			case t.Status == constants.TaskStatusFailed && t.LastError != "":
				line += ": " + t.LastError
			case t.Status == constants.TaskStatusBlocked && t.BlockedReason != "":
				line += ": " + t.BlockedReason
			case len(t.CommitIDs) > 0:
				line += fmt.Sprintf(" (%s)", strings.Join(t.CommitIDs, ", "))
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

// attemptedTasks returns the session's attempted task records in the order
// the session first started them.
func attemptedTasks(sess *domain.Session, tasks map[string]*domain.Task) []*domain.Task {
	out := make([]*domain.Task, 0, len(sess.TasksAttempted))
	for _, id := range sess.TasksAttempted {
		if t, ok := tasks[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
