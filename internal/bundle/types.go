// Package bundle implements the pause/resume bundle store. A bundle
// captures an interrupted agent task (typically parked on token
// exhaustion) together with the command that resumes it. All bundles live
// in a single manifest document; bundle directories hold their artifacts.
package bundle

import "time"

// Status is the lifecycle state of a bundle.
type Status string

const (
	// StatusRunning is the initial state at creation.
	StatusRunning Status = "running"

	// StatusWaiting marks a bundle parked until its resume time.
	StatusWaiting Status = "waiting_for_tokens"

	// StatusCompleted and StatusFailed are terminal.
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"

	// StatusPaused marks a bundle held by an operator.
	StatusPaused Status = "paused"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Bundle is one interrupted unit of work and its resume instructions.
type Bundle struct {
	ID      string `json:"id"`
	Session string `json:"session"`
	Agent   string `json:"agent"`
	Task    string `json:"task"`
	Status  Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ResumeAt is the earliest time the poller may retry this bundle.
	ResumeAt *time.Time `json:"resume_at,omitempty"`

	// NextCmd is the shell command that resumes the interrupted work.
	NextCmd string `json:"next_cmd,omitempty"`

	Retries    int `json:"retries"`
	MaxRetries int `json:"max_retries"`

	Artifacts []string          `json:"artifacts"`
	Metadata  map[string]string `json:"metadata"`
}

// GlobalConfig is the manifest-level configuration block.
type GlobalConfig struct {
	Timezone   string `json:"timezone"`
	MaxRetries int    `json:"max_retries"`
	AutoResume bool   `json:"auto_resume"`
}

// Manifest is the single document tracking every bundle.
type Manifest struct {
	Version     string             `json:"version"`
	LastSession string             `json:"last_session"`
	Bundles     map[string]*Bundle `json:"bundles"`
	Global      GlobalConfig       `json:"global_config"`
}
