package alert

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNeedHumanWritesInstructionFile(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	s, err := NewSystem(dir, &out, nil)
	if err != nil {
		t.Fatalf("NewSystem failed: %v", err)
	}

	path, err := s.NeedHuman(Alert{
		Agent:  "DEVELOPER",
		Task:   "task_2",
		Reason: "Token limit reached",
		Action: "Wait for the next resume window",
		Files:  []string{"internal/swarm/store.go"},
	})
	if err != nil {
		t.Fatalf("NeedHuman failed: %v", err)
	}

	name := filepath.Base(path)
	if !strings.HasPrefix(name, "NEED-INPUT_") || !strings.HasSuffix(name, "_DEVELOPER.md") {
		t.Errorf("alert filename = %q, want NEED-INPUT_<ts>_DEVELOPER.md", name)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("instruction file not written: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"NEED HUMAN INPUT",
		"Token limit reached",
		"Wait for the next resume window",
		"internal/swarm/store.go",
		"**Urgency:** medium",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("instruction file missing %q", want)
		}
	}

	// Banner rang the bell and named the agent
	banner := out.String()
	if !strings.Contains(banner, "\x07") {
		t.Error("banner did not ring the bell")
	}
	if !strings.Contains(banner, "DEVELOPER") {
		t.Error("banner did not name the agent")
	}
}

func TestPendingAndClear(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	s, err := NewSystem(dir, &out, nil)
	if err != nil {
		t.Fatalf("NewSystem failed: %v", err)
	}

	if s.HasPending() {
		t.Error("fresh system reports pending alerts")
	}

	path, err := s.NeedHuman(Alert{Agent: "QA", Task: "task_3", Reason: "r", Action: "a"})
	if err != nil {
		t.Fatalf("NeedHuman failed: %v", err)
	}

	pending, err := s.Pending()
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if len(pending) != 1 || pending[0] != filepath.Base(path) {
		t.Errorf("pending = %v, want the one alert", pending)
	}

	if err := s.Clear(pending[0]); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if s.HasPending() {
		t.Error("alert still pending after clear")
	}

	// Clearing a missing alert is a no-op
	if err := s.Clear("NEED-INPUT_gone_QA.md"); err != nil {
		t.Errorf("Clear of missing alert = %v, want nil", err)
	}
}
