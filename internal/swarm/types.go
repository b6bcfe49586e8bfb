// Package swarm implements the session and task engine that drives staged
// agent workflows. A Session owns an ordered chain of Tasks, one per agent
// stage; tasks advance strictly in order, gated on the completion of their
// dependencies. Sessions are persisted as JSON documents under the state
// directory, with a single active-session pointer file.
package swarm

import "time"

// Role identifies an agent stage in the workflow.
type Role string

// Agent roles in workflow order.
const (
	RolePM        Role = "PM"
	RoleArchitect Role = "ARCHITECT"
	RoleDeveloper Role = "DEVELOPER"
	RoleQA        Role = "QA"
	RoleSecurity  Role = "SECURITY"
	RoleTester    Role = "TESTER"

	// RoleOrchestrator is the pseudo-role a freshly created session points
	// at before any agent has started.
	RoleOrchestrator Role = "ORCHESTRATOR"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// SessionStatus represents the overall state of a session.
type SessionStatus string

const (
	// SessionActive indicates the session is runnable.
	SessionActive SessionStatus = "active"

	// SessionPaused indicates the session is waiting (for a person, or for
	// a bundle to resume) and will not advance until resumed.
	SessionPaused SessionStatus = "paused"

	// SessionCompleted indicates every task in the session completed.
	SessionCompleted SessionStatus = "completed"

	// SessionFailed indicates the session was terminally failed.
	SessionFailed SessionStatus = "failed"
)

// TaskStatus represents the current state of a task.
type TaskStatus string

const (
	// TaskPending indicates the task is waiting for its dependencies.
	TaskPending TaskStatus = "pending"

	// TaskInProgress indicates the owning agent is actively working.
	TaskInProgress TaskStatus = "in_progress"

	// TaskBlocked indicates the task was demoted while its session is paused.
	TaskBlocked TaskStatus = "blocked"

	// TaskCompleted indicates the task finished successfully.
	TaskCompleted TaskStatus = "completed"

	// TaskFailed indicates the task failed.
	TaskFailed TaskStatus = "failed"

	// TaskSkipped indicates the task was deliberately not run.
	TaskSkipped TaskStatus = "skipped"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal returns true if this status represents a final state.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskSkipped
}

// Task is one agent's unit of work within a session. Tasks are created in
// bulk when the session is created and mutated in place afterwards; they
// are never deleted individually.
type Task struct {
	// ID is sequential and scoped to the owning session ("task_0", ...).
	ID string `json:"id"`

	// Agent is the role responsible for this task.
	Agent Role `json:"agent"`

	// Description is the human-readable stage description.
	Description string `json:"description"`

	// Status is the current execution state.
	Status TaskStatus `json:"status"`

	// Progress is 0-100; forced to 100 on completion.
	Progress int `json:"progress"`

	// StartedAt is stamped once, on the first transition to in_progress.
	StartedAt *time.Time `json:"startedAt,omitempty"`

	// CompletedAt is stamped once, on the first transition to completed.
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// BlockedReason explains why the task is blocked, if it is.
	BlockedReason string `json:"blockedReason,omitempty"`

	// Output is the ordered log of lines the agent reported.
	Output []string `json:"output,omitempty"`

	// Artifacts lists files the agent produced.
	Artifacts []string `json:"artifacts,omitempty"`

	// Dependencies are task IDs that must be completed before this task
	// may be picked up. The graph builder emits a simple chain: each task
	// depends on exactly the task before it.
	Dependencies []string `json:"dependencies,omitempty"`
}

// Session is one end-to-end run of the staged agent workflow for a single
// named feature.
type Session struct {
	ID          string        `json:"id"`
	FeatureName string        `json:"featureName"`
	Status      SessionStatus `json:"status"`

	// Progress is derived: round(100 * completed / total).
	Progress int `json:"progress"`

	// CurrentAgent is the role most recently started.
	CurrentAgent Role `json:"currentAgent,omitempty"`

	Tasks []*Task `json:"tasks"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// BundleID links the session to a bundle when a stage is parked
	// waiting for external resources.
	BundleID string `json:"bundleId,omitempty"`
}

// Task returns the task with the given ID, or nil if none matches.
func (s *Session) Task(taskID string) *Task {
	for _, t := range s.Tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

// CompletedCount returns the number of completed tasks.
func (s *Session) CompletedCount() int {
	n := 0
	for _, t := range s.Tasks {
		if t.Status == TaskCompleted {
			n++
		}
	}
	return n
}

// CurrentTask returns the task currently in progress, or nil.
func (s *Session) CurrentTask() *Task {
	for _, t := range s.Tasks {
		if t.Status == TaskInProgress {
			return t
		}
	}
	return nil
}

// activePointer is the persisted active-session pointer document.
type activePointer struct {
	SessionID string `json:"sessionId"`
}
