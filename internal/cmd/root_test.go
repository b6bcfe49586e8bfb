package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/devswarm/swarm/internal/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no error", nil, 0},
		{"needs human", errors.NewNeedsHumanError("QA", "task_2", "ambiguous acceptance criteria", "clarify the criteria"), 0},
		{"plain error", errors.New("boom"), 1},
		{"agent failure", errors.NewAgentError("stage crashed", nil), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if got := exitCode(tt.err, &out); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExitCodeNeedsHumanMessage(t *testing.T) {
	var out bytes.Buffer
	err := errors.NewNeedsHumanError("QA", "task_2", "ambiguous acceptance criteria", "clarify the criteria")
	if got := exitCode(err, &out); got != 0 {
		t.Fatalf("exitCode() = %d, want 0", got)
	}
	if !strings.Contains(out.String(), "Session paused:") {
		t.Errorf("output missing pause notice: %q", out.String())
	}
	if strings.Contains(out.String(), "Error:") {
		t.Errorf("needs-human output should not be formatted as an error: %q", out.String())
	}
}
