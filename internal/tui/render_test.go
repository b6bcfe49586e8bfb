package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/devswarm/swarm/internal/agent"
	"github.com/devswarm/swarm/internal/swarm"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		progress int
		width    int
		want     string
	}{
		{0, 10, "░░░░░░░░░░ 0%"},
		{50, 10, "█████░░░░░ 50%"},
		{100, 10, "██████████ 100%"},
		{150, 10, "██████████ 100%"},
		{-5, 10, "░░░░░░░░░░ 0%"},
	}
	for _, tt := range tests {
		if got := ProgressBar(tt.progress, tt.width); got != tt.want {
			t.Errorf("ProgressBar(%d, %d) = %q, want %q", tt.progress, tt.width, got, tt.want)
		}
	}
}

func TestStatusIcon(t *testing.T) {
	if got := StatusIcon(swarm.TaskCompleted); got != "✓" {
		t.Errorf("completed icon = %q", got)
	}
	if got := StatusIcon(swarm.TaskStatus("bogus")); got != "?" {
		t.Errorf("unknown status icon = %q, want ?", got)
	}
}

func sampleSession() *swarm.Session {
	now := time.Now().UTC()
	return &swarm.Session{
		ID:           "swarm_1_abc",
		FeatureName:  "user registration",
		Status:       swarm.SessionActive,
		Progress:     33,
		CurrentAgent: swarm.RoleDeveloper,
		Tasks: []*swarm.Task{
			{ID: "task_0", Agent: swarm.RoleArchitect, Description: "Design", Status: swarm.TaskCompleted, Progress: 100},
			{ID: "task_1", Agent: swarm.RoleDeveloper, Description: "Implement", Status: swarm.TaskInProgress, Progress: 40,
				Output: []string{"line 1", "line 2", "line 3", "line 4"}},
			{ID: "task_2", Agent: swarm.RoleQA, Description: "Review", Status: swarm.TaskBlocked, BlockedReason: "Session paused"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRenderSession(t *testing.T) {
	r := NewRenderer(agent.DefaultRegistry())
	out := r.RenderSession(sampleSession())

	for _, want := range []string{
		"USER REGISTRATION",
		"ORCHESTRATOR",
		"[ARCHITECT] Design",
		"[DEVELOPER] Implement",
		"Completed",
		"Blocked: Session paused",
		"1/3 tasks completed",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q", want)
		}
	}

	// Only the last three output lines are shown
	if strings.Contains(out, "line 1") {
		t.Error("render shows more than the last three output lines")
	}
	if !strings.Contains(out, "line 4") {
		t.Error("render misses the most recent output line")
	}
}

func TestRenderCompact(t *testing.T) {
	r := NewRenderer(agent.DefaultRegistry())
	out := r.RenderCompact(sampleSession())

	if !strings.Contains(out, "user registration (active)") {
		t.Errorf("compact output = %q", out)
	}
	if !strings.Contains(out, "Running: DEVELOPER") {
		t.Error("compact output missing the running agent")
	}
}

func TestRenderSessionList(t *testing.T) {
	r := NewRenderer(agent.DefaultRegistry())

	if out := r.RenderSessionList(nil); !strings.Contains(out, "No sessions") {
		t.Errorf("empty list output = %q", out)
	}

	out := r.RenderSessionList([]*swarm.Session{sampleSession()})
	if !strings.Contains(out, "swarm_1_abc") || !strings.Contains(out, "33%") {
		t.Errorf("list output = %q", out)
	}
}
