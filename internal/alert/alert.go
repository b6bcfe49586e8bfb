// Package alert implements the NEED-HUMAN escalation path: a red banner
// on the terminal, a bell, and an instruction file a person can work from.
package alert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/devswarm/swarm/internal/logging"
)

const (
	alertsDirName   = "alerts"
	alertFilePrefix = "NEED-INPUT_"
)

// Urgency grades an alert.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Alert describes one escalation to a person.
type Alert struct {
	Agent  string
	Task   string
	Reason string
	Action string

	// Optional context for the instruction file.
	Details string
	Files   []string
	Routes  []string
	Urgency Urgency
}

// System writes alerts and renders them to the terminal.
type System struct {
	alertsDir string
	out       io.Writer
	logger    *logging.Logger
}

// NewSystem creates the alert system rooted at the state directory. Banners
// go to out (stderr when nil).
func NewSystem(stateDir string, out io.Writer, logger *logging.Logger) (*System, error) {
	if out == nil {
		out = os.Stderr
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	dir := filepath.Join(stateDir, alertsDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create alerts directory: %w", err)
	}
	return &System{alertsDir: dir, out: out, logger: logger}, nil
}

// NeedHuman raises an alert: rings the bell, prints the red banner, and
// writes the instruction file. Returns the instruction file path.
func (s *System) NeedHuman(a Alert) (string, error) {
	if a.Urgency == "" {
		a.Urgency = UrgencyMedium
	}

	now := time.Now().UTC()
	timestamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.Format(time.RFC3339))
	filename := fmt.Sprintf("%s%s_%s.md", alertFilePrefix, timestamp, a.Agent)
	path := filepath.Join(s.alertsDir, filename)

	s.printBanner(a)

	if err := os.WriteFile(path, []byte(s.instructionFile(a, now, path)), 0644); err != nil {
		return "", fmt.Errorf("failed to write alert file: %w", err)
	}

	s.logger.WithAgent(a.Agent).WithTask(a.Task).Warn("NEED HUMAN",
		"reason", a.Reason, "action", a.Action, "urgency", a.Urgency, "file", path)

	fmt.Fprintf(s.out, "\n📄 Instructions written to: %s\n", path)
	return path, nil
}

var (
	bannerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("1")).
			Foreground(lipgloss.Color("15")).
			Bold(true).
			Padding(0, 1)

	bannerHeadline = "🔴🔴🔴 NEED HUMAN INPUT 🔴🔴🔴"
)

func (s *System) printBanner(a Alert) {
	// Terminal bell
	fmt.Fprint(s.out, "\x07")

	lines := []string{
		bannerHeadline,
		fmt.Sprintf("AGENT: %-10s TASK: %s", a.Agent, a.Task),
		fmt.Sprintf("REASON: %s", truncate(a.Reason, 60)),
		fmt.Sprintf("ACTION: %s", truncate(a.Action, 60)),
	}
	fmt.Fprintf(s.out, "\n%s\n\n", bannerStyle.Render(strings.Join(lines, "\n")))
}

func (s *System) instructionFile(a Alert, now time.Time, path string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# 🚨 NEED HUMAN INPUT\n\n")
	fmt.Fprintf(&b, "**Agent:** %s\n", a.Agent)
	fmt.Fprintf(&b, "**Task:** %s\n", a.Task)
	fmt.Fprintf(&b, "**Timestamp:** %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "**Urgency:** %s\n\n", a.Urgency)

	fmt.Fprintf(&b, "## ❌ What's Wrong\n\n%s\n\n", a.Reason)
	fmt.Fprintf(&b, "## ✅ What You Need To Do\n\n%s\n\n", a.Action)

	if a.Details != "" {
		fmt.Fprintf(&b, "## 📋 Additional Details\n\n%s\n\n", a.Details)
	}
	if len(a.Routes) > 0 {
		fmt.Fprintf(&b, "## 🛣️ Affected Routes\n\n")
		for _, r := range a.Routes {
			fmt.Fprintf(&b, "- `%s`\n", r)
		}
		fmt.Fprintf(&b, "\n")
	}
	if len(a.Files) > 0 {
		fmt.Fprintf(&b, "## 📁 Files to Check\n\n")
		for _, f := range a.Files {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		fmt.Fprintf(&b, "\n")
	}

	fmt.Fprintf(&b, "## 🔧 Steps to Resolve\n\n")
	fmt.Fprintf(&b, "1. Review the reason and details above\n")
	fmt.Fprintf(&b, "2. Take the action described\n")
	fmt.Fprintf(&b, "3. Verify the fix\n")
	fmt.Fprintf(&b, "4. Resume the session with `swarm resume`\n\n")

	fmt.Fprintf(&b, "---\n\n")
	fmt.Fprintf(&b, "*Generated by the %s agent during %s.*\n", a.Agent, a.Task)
	fmt.Fprintf(&b, "*File: `%s`*\n", path)

	return b.String()
}

// Pending lists the open alert file names, oldest first.
func (s *System) Pending() ([]string, error) {
	entries, err := os.ReadDir(s.alertsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read alerts directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), alertFilePrefix) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// HasPending reports whether any alert is open.
func (s *System) HasPending() bool {
	names, err := s.Pending()
	return err == nil && len(names) > 0
}

// Clear removes a resolved alert by file name.
func (s *System) Clear(name string) error {
	path := filepath.Join(s.alertsDir, filepath.Base(name))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to clear alert %s: %w", name, err)
	}
	s.logger.Info("alert cleared", "alert", name)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
