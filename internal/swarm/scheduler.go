package swarm

import (
	"math"
	"time"

	"github.com/devswarm/swarm/internal/errors"
)

// TaskUpdate is a partial update merged into a task by UpdateTask.
// Nil fields are left untouched.
type TaskUpdate struct {
	Status        *TaskStatus
	Progress      *int
	BlockedReason *string

	// AppendOutput lines are appended to the task's output log.
	AppendOutput []string

	// AddArtifacts filenames are appended to the task's artifact list.
	AddArtifacts []string
}

// StatusUpdate returns a TaskUpdate that only changes status.
func StatusUpdate(status TaskStatus) TaskUpdate {
	return TaskUpdate{Status: &status}
}

// ProgressUpdate returns a TaskUpdate carrying a status and progress value.
func ProgressUpdate(status TaskStatus, progress int) TaskUpdate {
	return TaskUpdate{Status: &status, Progress: &progress}
}

// UpdateTask merges the given fields into a task and applies the engine
// invariants:
//
//   - first transition to in_progress stamps StartedAt and points
//     CurrentAgent at the task's role; later transitions leave StartedAt alone
//   - first transition to completed stamps CompletedAt; progress is forced
//     to 100 on every completed update
//   - session progress is recomputed as round(100 * completed / total)
//   - the session becomes completed exactly when every task is completed
//
// Updating a task in a session that does not exist, or a task ID that does
// not exist, is a caller bug and fails fast.
func (m *Manager) UpdateTask(sessionID, taskID string, update TaskUpdate) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.loadSessionLocked(sessionID)
	if err != nil {
		return nil, errors.NewSessionError("cannot update task", err).WithSessionID(sessionID)
	}

	task := session.Task(taskID)
	if task == nil {
		return nil, errors.NewSessionError("cannot update task", errors.ErrTaskNotFound).
			WithSessionID(sessionID).
			WithTaskID(taskID)
	}

	if update.Progress != nil {
		task.Progress = clampProgress(*update.Progress)
	}
	if update.BlockedReason != nil {
		task.BlockedReason = *update.BlockedReason
	}
	task.Output = append(task.Output, update.AppendOutput...)
	for _, artifact := range update.AddArtifacts {
		if !containsString(task.Artifacts, artifact) {
			task.Artifacts = append(task.Artifacts, artifact)
		}
	}

	if update.Status != nil {
		task.Status = *update.Status

		switch *update.Status {
		case TaskInProgress:
			if task.StartedAt == nil {
				now := time.Now().UTC()
				task.StartedAt = &now
			}
			session.CurrentAgent = task.Agent
		case TaskCompleted:
			if task.CompletedAt == nil {
				now := time.Now().UTC()
				task.CompletedAt = &now
			}
			task.Progress = 100
		}
	}

	recomputeSession(session)

	if err := m.saveSessionLocked(session); err != nil {
		return nil, err
	}

	m.logger.WithSession(sessionID).WithTask(taskID).Debug("task updated",
		"status", task.Status, "progress", task.Progress, "session_progress", session.Progress)

	return session, nil
}

// AddTaskOutput appends a line to a task's output log.
func (m *Manager) AddTaskOutput(sessionID, taskID, output string) error {
	_, err := m.UpdateTask(sessionID, taskID, TaskUpdate{AppendOutput: []string{output}})
	return err
}

// NextTask scans tasks in stored order and returns the first pending task
// whose dependencies are all completed. Returns nil when no task qualifies:
// either everything is done, or the chain is stuck behind a task that
// finished in any state other than completed.
func (m *Manager) NextTask(sessionID string) (*Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, err := m.loadSessionLocked(sessionID)
	if err != nil {
		return nil, err
	}

	return nextTask(session), nil
}

func nextTask(session *Session) *Task {
	for _, task := range session.Tasks {
		if task.Status != TaskPending {
			continue
		}
		if dependenciesMet(session, task) {
			return task
		}
	}
	return nil
}

func dependenciesMet(session *Session, task *Task) bool {
	for _, depID := range task.Dependencies {
		dep := session.Task(depID)
		if dep == nil || dep.Status != TaskCompleted {
			return false
		}
	}
	return true
}

// PauseSession marks a session paused. A task currently in progress is
// demoted to blocked with the given reason ("Session paused" by default);
// the pause is not preemptive; a running agent observes it on its next
// checkpoint.
func (m *Manager) PauseSession(sessionID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.loadSessionLocked(sessionID)
	if err != nil {
		return errors.NewSessionError("cannot pause session", err).WithSessionID(sessionID)
	}
	if session.Status == SessionCompleted {
		return errors.NewSessionError("cannot pause session", errors.ErrSessionCompleted).WithSessionID(sessionID)
	}

	if reason == "" {
		reason = "Session paused"
	}

	session.Status = SessionPaused
	if current := session.CurrentTask(); current != nil {
		current.Status = TaskBlocked
		current.BlockedReason = reason
	}

	if err := m.saveSessionLocked(session); err != nil {
		return err
	}

	m.logger.WithSession(sessionID).Info("session paused", "reason", reason)
	return nil
}

// ResumeSession reactivates a paused session. Every blocked task reverts to
// pending with its blocked reason cleared; a previously interrupted task
// restarts from pending rather than resuming mid-flight.
func (m *Manager) ResumeSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.loadSessionLocked(sessionID)
	if err != nil {
		return errors.NewSessionError("cannot resume session", err).WithSessionID(sessionID)
	}
	if session.Status == SessionCompleted {
		return errors.NewSessionError("cannot resume session", errors.ErrSessionCompleted).WithSessionID(sessionID)
	}

	session.Status = SessionActive
	for _, task := range session.Tasks {
		if task.Status == TaskBlocked {
			task.Status = TaskPending
			task.BlockedReason = ""
		}
	}

	if err := m.saveSessionLocked(session); err != nil {
		return err
	}

	m.logger.WithSession(sessionID).Info("session resumed")
	return nil
}

// FailSession marks a session terminally failed.
func (m *Manager) FailSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, err := m.loadSessionLocked(sessionID)
	if err != nil {
		return errors.NewSessionError("cannot fail session", err).WithSessionID(sessionID)
	}

	session.Status = SessionFailed
	return m.saveSessionLocked(session)
}

// recomputeSession derives session progress and completion status from the
// task states. A completed session never reverts to active here: completion
// requires every task completed, and completed tasks stay completed.
func recomputeSession(session *Session) {
	total := len(session.Tasks)
	if total == 0 {
		return
	}

	completed := session.CompletedCount()
	session.Progress = int(math.Round(100 * float64(completed) / float64(total)))

	if completed == total {
		session.Status = SessionCompleted
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
