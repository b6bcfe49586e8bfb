// Package tui renders session state for the terminal: one-shot status
// output and a live watch view.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/devswarm/swarm/internal/agent"
	"github.com/devswarm/swarm/internal/swarm"
)

var (
	headerStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("12")).
			Padding(0, 2).
			Bold(true)

	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Renderer formats sessions for terminal output.
type Renderer struct {
	registry *agent.Registry
}

// NewRenderer creates a renderer using the registry for role display
// metadata.
func NewRenderer(registry *agent.Registry) *Renderer {
	return &Renderer{registry: registry}
}

// ProgressBar renders a block-character bar for a 0-100 value.
func ProgressBar(progress, width int) string {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	filled := progress * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf(" %d%%", progress)
}

// StatusIcon maps a task status to its display glyph.
func StatusIcon(status swarm.TaskStatus) string {
	switch status {
	case swarm.TaskPending:
		return "⏳"
	case swarm.TaskInProgress:
		return "⚡"
	case swarm.TaskCompleted:
		return "✓"
	case swarm.TaskFailed:
		return "✗"
	case swarm.TaskBlocked:
		return "🚫"
	case swarm.TaskSkipped:
		return "⊘"
	default:
		return "?"
	}
}

// RenderSession renders the full per-task view of a session.
func (r *Renderer) RenderSession(session *swarm.Session) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(headerStyle.Render(strings.ToUpper(session.FeatureName)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "🎯 [ORCHESTRATOR] %s\n\n", ProgressBar(session.Progress, 40))

	for _, task := range session.Tasks {
		emoji := r.registry.Emoji(task.Agent)
		fmt.Fprintf(&b, "%s [%s] %s\n", emoji, task.Agent, task.Description)

		if n := len(task.Output); n > 0 {
			for _, line := range task.Output[max(0, n-3):] {
				fmt.Fprintf(&b, "   %s\n", dimStyle.Render(line))
			}
		}

		switch task.Status {
		case swarm.TaskInProgress:
			fmt.Fprintf(&b, "   %s\n", ProgressBar(task.Progress, 20))
		case swarm.TaskCompleted:
			fmt.Fprintf(&b, "%s\n", okStyle.Render(StatusIcon(task.Status)+" Completed"))
		case swarm.TaskFailed:
			reason := task.BlockedReason
			if reason == "" {
				reason = "unknown error"
			}
			fmt.Fprintf(&b, "%s\n", failStyle.Render(StatusIcon(task.Status)+" Failed: "+reason))
		case swarm.TaskBlocked:
			reason := task.BlockedReason
			if reason == "" {
				reason = "waiting"
			}
			fmt.Fprintf(&b, "%s\n", blockedStyle.Render(StatusIcon(task.Status)+" Blocked: "+reason))
		}
		b.WriteString("\n")
	}

	completed := session.CompletedCount()
	failed := 0
	for _, task := range session.Tasks {
		if task.Status == swarm.TaskFailed {
			failed++
		}
	}

	b.WriteString(ruleStyle.Render(strings.Repeat("─", 60)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "📊 Progress: %d/%d tasks completed\n", completed, len(session.Tasks))
	if failed > 0 {
		fmt.Fprintf(&b, "⚠️  %d tasks failed\n", failed)
	}
	fmt.Fprintf(&b, "⏱️  Started: %s\n", session.CreatedAt.Local().Format(time.RFC1123))
	fmt.Fprintf(&b, "🔄 Updated: %s\n", session.UpdatedAt.Local().Format(time.RFC1123))

	return b.String()
}

// RenderCompact renders the one-line summary used by the watch view.
func (r *Renderer) RenderCompact(session *swarm.Session) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📦 %s (%s)\n", session.FeatureName, session.Status)
	fmt.Fprintf(&b, "   %s\n", ProgressBar(session.Progress, 30))

	if current := session.CurrentTask(); current != nil {
		fmt.Fprintf(&b, "   %s Running: %s\n", r.registry.Emoji(current.Agent), current.Agent)
	}
	return b.String()
}

// RenderNoSession renders the empty state with usage hints.
func (r *Renderer) RenderNoSession() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("No active session"))
	b.WriteString("\n\n")
	b.WriteString("Start a new session:\n")
	b.WriteString("  swarm start \"feature name\"\n\n")
	b.WriteString("List previous sessions:\n")
	b.WriteString("  swarm sessions\n")
	return b.String()
}

// RenderSessionList renders one line per persisted session.
func (r *Renderer) RenderSessionList(sessions []*swarm.Session) string {
	if len(sessions) == 0 {
		return "No sessions found.\n"
	}

	var b strings.Builder
	for _, s := range sessions {
		icon := "●"
		style := dimStyle
		switch s.Status {
		case swarm.SessionActive:
			style = okStyle
		case swarm.SessionFailed:
			style = failStyle
		case swarm.SessionPaused:
			style = blockedStyle
		}
		fmt.Fprintf(&b, "%s %s  %-30s %3d%%  %s\n",
			style.Render(icon), s.ID, s.FeatureName, s.Progress, s.Status)
	}
	return b.String()
}
