package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forgeworks/pipeline/internal/clock"
	"github.com/forgeworks/pipeline/internal/constants"
	"github.com/forgeworks/pipeline/internal/ctxutil"
	"github.com/forgeworks/pipeline/internal/domain"
	pipelineerrors "github.com/forgeworks/pipeline/internal/errors"
)

// Manager owns the session lifecycle. Every state transition is persisted
// atomically before the method returns, so a crash at any point leaves the
// log describing exactly what had durably happened.
type Manager struct {
	store          Store
	clock          clock.Clock
	log            zerolog.Logger
	crashThreshold time.Duration
	maxAttempts    int
}

// NewManager creates a session Manager.
// crashThreshold and maxAttempts fall back to defaults when non-positive.
func NewManager(store Store, clk clock.Clock, log zerolog.Logger, crashThreshold time.Duration, maxAttempts int) *Manager {
	if crashThreshold <= 0 {
		crashThreshold = constants.DefaultCrashThreshold
	}
	if maxAttempts <= 0 {
		maxAttempts = constants.DefaultMaxAttempts
	}
	return &Manager{
		store:          store,
		clock:          clk,
		log:            log.With().Str("component", "session").Logger(),
		crashThreshold: crashThreshold,
		maxAttempts:    maxAttempts,
	}
}

// Init starts a new session for a plan. At most one session may be active;
// starting while one is active returns ErrSessionActive unless takeover is
// set, in which case the stale session is recorded as crashed first.
func (m *Manager) Init(ctx context.Context, plan, branch string, takeover bool) (*domain.Session, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if plan == "" {
		return nil, fmt.Errorf("failed to init session: plan %w", pipelineerrors.ErrEmptyValue)
	}

	slog, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to init session: %w", err)
	}

	now := m.clock.Now().UTC()
	if active := slog.ActiveSession(); active != nil {
		if !takeover {
			return nil, fmt.Errorf("session '%s' is still active: %w", active.ID, pipelineerrors.ErrSessionActive)
		}
		m.endSession(active, constants.SessionStatusCrashed, "taken over by a new session", slog, now)
	}

	sess := &domain.Session{
		ID:             uuid.New().String(),
		Plan:           plan,
		Branch:         branch,
		Status:         constants.SessionStatusActive,
		StartedAt:      now,
		TasksAttempted: []string{},
		LastCheckpoint: now,
	}
	slog.Sessions = append(slog.Sessions, sess)

	if err := m.store.Save(ctx, slog); err != nil {
		return nil, fmt.Errorf("failed to init session: %w", err)
	}
	m.log.Info().Str("session_id", sess.ID).Str("plan", plan).Msg("session started")
	return sess, nil
}

// Active returns the currently active session.
// Returns ErrNoActiveSession when nothing is running.
func (m *Manager) Active(ctx context.Context) (*domain.Session, error) {
	slog, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}
	active := slog.ActiveSession()
	if active == nil {
		return nil, pipelineerrors.ErrNoActiveSession
	}
	return active, nil
}

// CheckCrashed inspects the log at process start and reports whether the
// latest session looks crashed: still active with a checkpoint older than
// the crash threshold. The check is read-only; nothing is mutated until
// the caller decides to resume or take over.
func (m *Manager) CheckCrashed(ctx context.Context) (*domain.CrashCheck, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	slog, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check for crashed session: %w", err)
	}

	latest := slog.LatestSession()
	if latest == nil {
		return &domain.CrashCheck{Recommendation: "no sessions recorded; start a new session"}, nil
	}
	if latest.Status != constants.SessionStatusActive {
		return &domain.CrashCheck{
			SessionID:      latest.ID,
			Recommendation: fmt.Sprintf("last session ended %s; start a new session", latest.Status),
		}, nil
	}

	age := m.clock.Now().UTC().Sub(latest.LastCheckpoint)
	if age < m.crashThreshold {
		return &domain.CrashCheck{
			HasActiveSession: true,
			SessionID:        latest.ID,
			Recommendation: fmt.Sprintf("session '%s' is active with a checkpoint %s old; another process may still be running",
				latest.ID, age.Round(time.Second)),
		}, nil
	}

	check := &domain.CrashCheck{
		HasCrashedSession: true,
		HasActiveSession:  true,
		SessionID:         latest.ID,
		ResumeTaskID:      latest.CurrentTaskID,
	}
	if latest.CurrentTaskID != "" {
		check.Recommendation = fmt.Sprintf("session '%s' appears crashed (checkpoint %s old); resume at task %s",
			latest.ID, age.Round(time.Second), latest.CurrentTaskID)
	} else {
		check.Recommendation = fmt.Sprintf("session '%s' appears crashed (checkpoint %s old); resume from the next pending task",
			latest.ID, age.Round(time.Second))
	}
	return check, nil
}

// Resume recovers from a crashed session: the stale session is recorded as
// crashed, its in-flight task is marked failed so retry accounting applies,
// and a fresh active session is started for the same plan. Completed tasks
// keep their status in the shared map, so resumed work never re-executes
// them. Returns the new session and the task to resume at, if any.
func (m *Manager) Resume(ctx context.Context) (*domain.Session, string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, "", err
	}

	check, err := m.CheckCrashed(ctx)
	if err != nil {
		return nil, "", err
	}
	if !check.HasCrashedSession {
		return nil, "", fmt.Errorf("failed to resume: no crashed session: %w", pipelineerrors.ErrSessionNotFound)
	}

	slog, err := m.store.Load(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resume: %w", err)
	}
	crashed := slog.LatestSession()
	now := m.clock.Now().UTC()
	m.endSession(crashed, constants.SessionStatusCrashed, "crash detected at startup", slog, now)

	sess := &domain.Session{
		ID:             uuid.New().String(),
		Plan:           crashed.Plan,
		Branch:         crashed.Branch,
		Status:         constants.SessionStatusActive,
		StartedAt:      now,
		TasksAttempted: []string{},
		LastCheckpoint: now,
	}
	slog.Sessions = append(slog.Sessions, sess)

	if err := m.store.Save(ctx, slog); err != nil {
		return nil, "", fmt.Errorf("failed to resume: %w", err)
	}
	m.log.Info().
		Str("crashed_session_id", crashed.ID).
		Str("session_id", sess.ID).
		Str("resume_task_id", check.ResumeTaskID).
		Msg("session resumed after crash")
	return sess, check.ResumeTaskID, nil
}

// StartTask moves a task into in_progress under the active session. A task
// not yet in the log is registered as pending first. Restarting a failed
// task counts as a new attempt and is refused once the attempt cap is
// reached. Re-entering from blocked does not consume an attempt.
func (m *Manager) StartTask(ctx context.Context, taskID string) (*domain.Task, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if taskID == "" {
		return nil, fmt.Errorf("failed to start task: task id %w", pipelineerrors.ErrEmptyValue)
	}

	slog, sess, err := m.loadActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start task '%s': %w", taskID, err)
	}
	if sess.CurrentTaskID != "" && sess.CurrentTaskID != taskID {
		return nil, fmt.Errorf("failed to start task '%s': task '%s' is already in flight: %w",
			taskID, sess.CurrentTaskID, pipelineerrors.ErrInvalidTransition)
	}

	task, ok := slog.Tasks[taskID]
	if !ok {
		task = &domain.Task{ID: taskID, Status: constants.TaskStatusPending}
		slog.Tasks[taskID] = task
	}

	if !IsValidTaskTransition(task.Status, constants.TaskStatusInProgress) {
		return nil, fmt.Errorf("failed to start task '%s': cannot move %s to %s: %w",
			taskID, task.Status, constants.TaskStatusInProgress, pipelineerrors.ErrInvalidTransition)
	}
	if task.Status == constants.TaskStatusFailed && task.Attempts >= m.maxAttempts {
		return nil, fmt.Errorf("task '%s' failed %d times: %w",
			taskID, task.Attempts, pipelineerrors.ErrMaxAttemptsExceeded)
	}

	now := m.clock.Now().UTC()
	fromBlocked := task.Status == constants.TaskStatusBlocked
	task.Status = constants.TaskStatusInProgress
	task.BlockedReason = ""
	if !fromBlocked {
		task.Attempts++
	}
	if task.StartedAt == nil {
		task.StartedAt = &now
	}

	sess.CurrentTaskID = taskID
	if !containsString(sess.TasksAttempted, taskID) {
		sess.TasksAttempted = append(sess.TasksAttempted, taskID)
	}
	sess.LastCheckpoint = now

	if err := m.store.Save(ctx, slog); err != nil {
		return nil, fmt.Errorf("failed to start task '%s': %w", taskID, err)
	}
	m.log.Info().Str("task_id", taskID).Int("attempt", task.Attempts).Msg("task started")
	return task, nil
}

// CompleteTask moves the in-flight task to completed and records what it
// touched. Completed is terminal: a resumed session will skip this task.
func (m *Manager) CompleteTask(ctx context.Context, taskID string, modifiedResources, commitIDs []string) (*domain.Task, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	slog, sess, task, err := m.loadInFlight(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete task '%s': %w", taskID, err)
	}

	now := m.clock.Now().UTC()
	task.Status = constants.TaskStatusCompleted
	task.CompletedAt = &now
	task.LastError = ""
	task.ModifiedResources = mergeStrings(task.ModifiedResources, modifiedResources)
	task.CommitIDs = mergeStrings(task.CommitIDs, commitIDs)

	sess.CurrentTaskID = ""
	sess.TasksCompleted++
	sess.Commits += len(commitIDs)
	sess.LastCheckpoint = now

	if err := m.store.Save(ctx, slog); err != nil {
		return nil, fmt.Errorf("failed to complete task '%s': %w", taskID, err)
	}
	m.log.Info().Str("task_id", taskID).Int("commits", len(commitIDs)).Msg("task completed")
	return task, nil
}

// FailTask moves the in-flight task to failed with the given error message.
// The task may be retried via StartTask until the attempt cap.
func (m *Manager) FailTask(ctx context.Context, taskID, errMsg string) (*domain.Task, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	slog, sess, task, err := m.loadInFlight(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to fail task '%s': %w", taskID, err)
	}

	now := m.clock.Now().UTC()
	task.Status = constants.TaskStatusFailed
	task.LastError = errMsg

	sess.CurrentTaskID = ""
	sess.TasksFailed++
	sess.LastCheckpoint = now

	if err := m.store.Save(ctx, slog); err != nil {
		return nil, fmt.Errorf("failed to fail task '%s': %w", taskID, err)
	}
	m.log.Warn().Str("task_id", taskID).Str("error", errMsg).Msg("task failed")
	return task, nil
}

// BlockTask moves a pending or in-flight task to blocked with a reason.
// Blocking does not consume a retry attempt.
func (m *Manager) BlockTask(ctx context.Context, taskID, reason string) (*domain.Task, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, fmt.Errorf("failed to block task '%s': reason %w", taskID, pipelineerrors.ErrEmptyValue)
	}

	slog, sess, err := m.loadActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to block task '%s': %w", taskID, err)
	}
	task, ok := slog.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("failed to block task '%s': %w", taskID, pipelineerrors.ErrTaskNotFound)
	}
	if !IsValidTaskTransition(task.Status, constants.TaskStatusBlocked) {
		return nil, fmt.Errorf("failed to block task '%s': cannot move %s to %s: %w",
			taskID, task.Status, constants.TaskStatusBlocked, pipelineerrors.ErrInvalidTransition)
	}

	now := m.clock.Now().UTC()
	task.Status = constants.TaskStatusBlocked
	task.BlockedReason = reason
	if sess.CurrentTaskID == taskID {
		sess.CurrentTaskID = ""
	}
	sess.LastCheckpoint = now

	if err := m.store.Save(ctx, slog); err != nil {
		return nil, fmt.Errorf("failed to block task '%s': %w", taskID, err)
	}
	m.log.Info().Str("task_id", taskID).Str("reason", reason).Msg("task blocked")
	return task, nil
}

// Checkpoint refreshes the active session's checkpoint timestamp. Long
// operations call this periodically so crash detection does not mistake
// them for dead sessions.
func (m *Manager) Checkpoint(ctx context.Context) error {
	slog, sess, err := m.loadActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	sess.LastCheckpoint = m.clock.Now().UTC()
	if err := m.store.Save(ctx, slog); err != nil {
		return fmt.Errorf("failed to checkpoint: %w", err)
	}
	return nil
}

// End moves the active session to a terminal status with an optional
// summary. Ending as crashed fails any task still in flight so its attempt
// is accounted for.
func (m *Manager) End(ctx context.Context, status constants.SessionStatus, summary string) (*domain.Session, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	slog, sess, err := m.loadActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to end session: %w", err)
	}
	if !IsValidSessionTransition(sess.Status, status) {
		return nil, fmt.Errorf("failed to end session '%s': cannot move %s to %s: %w",
			sess.ID, sess.Status, status, pipelineerrors.ErrInvalidTransition)
	}

	now := m.clock.Now().UTC()
	m.endSession(sess, status, summary, slog, now)

	if err := m.store.Save(ctx, slog); err != nil {
		return nil, fmt.Errorf("failed to end session '%s': %w", sess.ID, err)
	}
	m.log.Info().Str("session_id", sess.ID).Str("status", status.String()).Msg("session ended")
	return sess, nil
}

// GetTask returns the task record for an identifier.
func (m *Manager) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	slog, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get task '%s': %w", taskID, err)
	}
	task, ok := slog.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("failed to get task '%s': %w", taskID, pipelineerrors.ErrTaskNotFound)
	}
	return task, nil
}

// Log returns the full session log for reporting.
func (m *Manager) Log(ctx context.Context) (*domain.SessionLog, error) {
	return m.store.Load(ctx)
}

// endSession applies a terminal status in memory. The caller persists.
func (m *Manager) endSession(sess *domain.Session, status constants.SessionStatus, summary string, slog *domain.SessionLog, now time.Time) {
	if sess.CurrentTaskID != "" && status == constants.SessionStatusCrashed {
		if task, ok := slog.Tasks[sess.CurrentTaskID]; ok && task.Status == constants.TaskStatusInProgress {
			task.Status = constants.TaskStatusFailed
			task.LastError = "session crashed while task was in flight"
			sess.TasksFailed++
		}
		sess.CurrentTaskID = ""
	}
	sess.Status = status
	sess.EndedAt = &now
	sess.LastCheckpoint = now
	if summary != "" {
		sess.Summary = summary
	}
}

// loadActive loads the log and its active session.
func (m *Manager) loadActive(ctx context.Context) (*domain.SessionLog, *domain.Session, error) {
	slog, err := m.store.Load(ctx)
	if err != nil {
		return nil, nil, err
	}
	sess := slog.ActiveSession()
	if sess == nil {
		return nil, nil, pipelineerrors.ErrNoActiveSession
	}
	return slog, sess, nil
}

// loadInFlight loads the log, active session, and the task that must be the
// one currently in flight.
func (m *Manager) loadInFlight(ctx context.Context, taskID string) (*domain.SessionLog, *domain.Session, *domain.Task, error) {
	slog, sess, err := m.loadActive(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	task, ok := slog.Tasks[taskID]
	if !ok {
		return nil, nil, nil, pipelineerrors.ErrTaskNotFound
	}
	if sess.CurrentTaskID != taskID || task.Status != constants.TaskStatusInProgress {
		return nil, nil, nil, fmt.Errorf("task is not in flight (status %s): %w",
			task.Status, pipelineerrors.ErrInvalidTransition)
	}
	return slog, sess, task, nil
}

// containsString reports whether list includes v.
func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// mergeStrings appends items not already present, preserving order.
func mergeStrings(existing, add []string) []string {
	for _, v := range add {
		if !containsString(existing, v) {
			existing = append(existing, v)
		}
	}
	return existing
}
