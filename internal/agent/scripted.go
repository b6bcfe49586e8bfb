package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// The scripted runners below generate their documents deterministically
// from the feature name. They stand in for interactive coding agents: the
// orchestration semantics (progress checkpoints, artifacts, pause and
// retry behavior) are identical either way.

type pmRunner struct{}

func (r *pmRunner) Run(ctx context.Context, rc *Context) error {
	steps := []struct {
		progress int
		message  string
	}{
		{10, "Analyzing feature request..."},
		{30, "Generating user stories..."},
		{50, "Defining requirements..."},
		{70, "Validating business rules..."},
		{90, "Generating PRD..."},
	}
	if err := runSteps(ctx, rc, steps); err != nil {
		return err
	}

	var b strings.Builder
	writeHeader(&b, "Product Requirements", rc.FeatureName)
	fmt.Fprintf(&b, "## User Stories\n\n")
	fmt.Fprintf(&b, "- As a user, I want %s so that I can complete my task.\n\n", rc.FeatureName)
	fmt.Fprintf(&b, "## Requirements\n\n")
	fmt.Fprintf(&b, "- FR-001 (must-have): implement %s\n", rc.FeatureName)
	fmt.Fprintf(&b, "- NFR-001 (must-have): responses under 3s for core flows\n")
	fmt.Fprintf(&b, "- NFR-002 (should-have): input validation on every entry point\n\n")
	fmt.Fprintf(&b, "## Acceptance Criteria\n\n")
	fmt.Fprintf(&b, "- Core functionality implemented and covered by tests\n")
	fmt.Fprintf(&b, "- Documentation updated\n")

	if _, err := rc.SaveArtifact(artifactName("PRD", rc.FeatureName), []byte(b.String())); err != nil {
		return err
	}
	return rc.Progress(100, "PM validation completed")
}

type architectRunner struct{}

func (r *architectRunner) Run(ctx context.Context, rc *Context) error {
	steps := []struct {
		progress int
		message  string
	}{
		{10, "Reviewing requirements..."},
		{35, "Designing data model..."},
		{60, "Defining component boundaries..."},
		{85, "Writing design notes..."},
	}
	if err := runSteps(ctx, rc, steps); err != nil {
		return err
	}

	var b strings.Builder
	writeHeader(&b, "Technical Design", rc.FeatureName)
	fmt.Fprintf(&b, "## Components\n\n")
	fmt.Fprintf(&b, "- Service layer exposing the %s operations\n", rc.FeatureName)
	fmt.Fprintf(&b, "- Persistence behind a repository interface\n")
	fmt.Fprintf(&b, "- Validation at the API boundary\n\n")
	fmt.Fprintf(&b, "## Data Model\n\n")
	fmt.Fprintf(&b, "Entities derived from the requirements document; ")
	fmt.Fprintf(&b, "identifiers are opaque strings, timestamps are UTC.\n\n")
	fmt.Fprintf(&b, "## Risks\n\n")
	fmt.Fprintf(&b, "- Concurrent writers on shared state\n")
	fmt.Fprintf(&b, "- Backward compatibility of persisted documents\n")

	if _, err := rc.SaveArtifact(artifactName("DESIGN", rc.FeatureName), []byte(b.String())); err != nil {
		return err
	}
	return rc.Progress(100, "Architecture design completed")
}

type developerRunner struct{}

func (r *developerRunner) Run(ctx context.Context, rc *Context) error {
	steps := []struct {
		progress int
		message  string
	}{
		{10, "Reading design notes..."},
		{30, "Scaffolding modules..."},
		{55, "Implementing core logic..."},
		{75, "Wiring persistence..."},
		{90, "Writing implementation summary..."},
	}
	if err := runSteps(ctx, rc, steps); err != nil {
		return err
	}

	var b strings.Builder
	writeHeader(&b, "Implementation Summary", rc.FeatureName)
	fmt.Fprintf(&b, "## Changes\n\n")
	fmt.Fprintf(&b, "- Implemented %s per the design document\n", rc.FeatureName)
	fmt.Fprintf(&b, "- Added unit tests for the new behavior\n\n")
	fmt.Fprintf(&b, "## Follow-ups\n\n")
	fmt.Fprintf(&b, "- None outstanding\n")

	if _, err := rc.SaveArtifact(artifactName("IMPLEMENTATION", rc.FeatureName), []byte(b.String())); err != nil {
		return err
	}
	return rc.Progress(100, "Implementation completed")
}

type qaRunner struct{}

func (r *qaRunner) Run(ctx context.Context, rc *Context) error {
	steps := []struct {
		progress int
		message  string
	}{
		{15, "Collecting changed files..."},
		{40, "Checking conventions and lint rules..."},
		{70, "Reviewing error handling..."},
		{90, "Writing QA report..."},
	}
	if err := runSteps(ctx, rc, steps); err != nil {
		return err
	}

	var b strings.Builder
	writeHeader(&b, "QA Report", rc.FeatureName)
	fmt.Fprintf(&b, "## Checklist\n\n")
	fmt.Fprintf(&b, "- [x] Naming follows project conventions\n")
	fmt.Fprintf(&b, "- [x] Errors are wrapped with context\n")
	fmt.Fprintf(&b, "- [x] No unused exports introduced\n\n")
	fmt.Fprintf(&b, "## Findings\n\n")
	fmt.Fprintf(&b, "No blocking issues found.\n")

	if _, err := rc.SaveArtifact(artifactName("QA_REPORT", rc.FeatureName), []byte(b.String())); err != nil {
		return err
	}
	return rc.Progress(100, "QA review completed")
}

type securityRunner struct{}

func (r *securityRunner) Run(ctx context.Context, rc *Context) error {
	steps := []struct {
		progress int
		message  string
	}{
		{15, "Scanning for injection patterns..."},
		{40, "Reviewing authentication paths..."},
		{65, "Checking secrets handling..."},
		{90, "Writing security report..."},
	}
	if err := runSteps(ctx, rc, steps); err != nil {
		return err
	}

	var b strings.Builder
	writeHeader(&b, "Security Report", rc.FeatureName)
	fmt.Fprintf(&b, "## Scope\n\n")
	fmt.Fprintf(&b, "Static review of the changes for %s.\n\n", rc.FeatureName)
	fmt.Fprintf(&b, "## Findings\n\n")
	fmt.Fprintf(&b, "| Severity | Finding |\n|---|---|\n")
	fmt.Fprintf(&b, "| info | No hardcoded credentials detected |\n")
	fmt.Fprintf(&b, "| info | Inputs validated before persistence |\n")

	if _, err := rc.SaveArtifact(artifactName("SECURITY_REPORT", rc.FeatureName), []byte(b.String())); err != nil {
		return err
	}
	return rc.Progress(100, "Security audit completed")
}

type testerRunner struct{}

func (r *testerRunner) Run(ctx context.Context, rc *Context) error {
	steps := []struct {
		progress int
		message  string
	}{
		{15, "Preparing test environment..."},
		{45, "Running unit tests..."},
		{70, "Running integration checks..."},
		{90, "Writing test report..."},
	}
	if err := runSteps(ctx, rc, steps); err != nil {
		return err
	}

	var b strings.Builder
	writeHeader(&b, "Test Report", rc.FeatureName)
	fmt.Fprintf(&b, "## Results\n\n")
	fmt.Fprintf(&b, "- Unit tests: pass\n")
	fmt.Fprintf(&b, "- Integration checks: pass\n\n")
	fmt.Fprintf(&b, "## Coverage Notes\n\n")
	fmt.Fprintf(&b, "New behavior for %s covered by dedicated tests.\n", rc.FeatureName)

	if _, err := rc.SaveArtifact(artifactName("TEST_REPORT", rc.FeatureName), []byte(b.String())); err != nil {
		return err
	}
	return rc.Progress(100, "Testing completed")
}

// runSteps walks the progress checkpoints, honoring context cancellation
// between steps.
func runSteps(ctx context.Context, rc *Context, steps []struct {
	progress int
	message  string
}) error {
	for _, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := rc.Progress(step.progress, step.message); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(b *strings.Builder, title, feature string) {
	fmt.Fprintf(b, "# %s: %s\n\n", title, feature)
	fmt.Fprintf(b, "Generated %s\n\n", time.Now().UTC().Format(time.RFC3339))
}
