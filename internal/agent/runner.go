package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devswarm/swarm/internal/logging"
)

// ProgressFunc reports agent progress (0-100) with a log line. It is wired
// to the task scheduler by the orchestrator.
type ProgressFunc func(progress int, message string) error

// Context carries everything a runner needs for one task execution.
type Context struct {
	SessionID   string
	TaskID      string
	FeatureName string

	// Workspace is the directory agents write their artifacts into.
	Workspace string

	Logger *logging.Logger

	report    ProgressFunc
	artifacts []string
}

// NewContext builds a runner context. A nil report function is replaced
// with a no-op; a nil logger with the nop logger.
func NewContext(sessionID, taskID, featureName, workspace string, logger *logging.Logger, report ProgressFunc) *Context {
	if report == nil {
		report = func(int, string) error { return nil }
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Context{
		SessionID:   sessionID,
		TaskID:      taskID,
		FeatureName: featureName,
		Workspace:   workspace,
		Logger:      logger,
		report:      report,
	}
}

// Progress reports a checkpoint to the scheduler and the log.
func (c *Context) Progress(progress int, message string) error {
	c.Logger.Debug("agent progress", "progress", progress, "message", message)
	return c.report(progress, message)
}

// SaveArtifact writes a document into the workspace and records it. The
// returned path is relative to the workspace.
func (c *Context) SaveArtifact(name string, content []byte) (string, error) {
	if err := os.MkdirAll(c.Workspace, 0755); err != nil {
		return "", fmt.Errorf("failed to create workspace directory: %w", err)
	}
	path := filepath.Join(c.Workspace, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	c.artifacts = append(c.artifacts, name)
	c.Logger.Info("artifact saved", "artifact", name)
	return name, nil
}

// Artifacts lists the artifact names saved during this execution.
func (c *Context) Artifacts() []string {
	return c.artifacts
}

// Runner executes one agent stage. Implementations return nil on success,
// an errors.NeedsHumanError when a person must intervene, or any other
// error on failure; retryable failures are turned into bundles by the
// orchestrator.
type Runner interface {
	Run(ctx context.Context, rc *Context) error
}

// artifactName derives a filesystem-safe document name from the artifact
// prefix and feature name, e.g. "PRD_user-registration.md".
func artifactName(prefix, feature string) string {
	slug := strings.ToLower(strings.TrimSpace(feature))
	slug = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '_', r == '-', r == '/':
			return '-'
		default:
			return -1
		}
	}, slug)
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "feature"
	}
	return fmt.Sprintf("%s_%s.md", prefix, slug)
}
