package orchestrator

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/devswarm/swarm/internal/agent"
	"github.com/devswarm/swarm/internal/alert"
	"github.com/devswarm/swarm/internal/bundle"
	"github.com/devswarm/swarm/internal/errors"
	"github.com/devswarm/swarm/internal/swarm"
)

// stubRunner returns a canned error, optionally only on its first run.
type stubRunner struct {
	err      error
	once     bool
	runCount int
}

func (r *stubRunner) Run(ctx context.Context, rc *agent.Context) error {
	r.runCount++
	if err := rc.Progress(100, "done"); err != nil {
		return err
	}
	if r.err != nil && (!r.once || r.runCount == 1) {
		return r.err
	}
	return nil
}

type fixture struct {
	orch     *Orchestrator
	sessions *swarm.Manager
	bundles  *bundle.Store
	alerts   *alert.System
	runners  map[swarm.Role]*stubRunner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	sessions, err := swarm.NewManager(dir, nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	bundles, err := bundle.NewStore(dir, bundle.GlobalConfig{MaxRetries: 2, AutoResume: true}, nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	alerts, err := alert.NewSystem(dir, &bytes.Buffer{}, nil)
	if err != nil {
		t.Fatalf("NewSystem failed: %v", err)
	}

	registry := agent.DefaultRegistry()
	runners := make(map[swarm.Role]*stubRunner)
	for _, role := range []swarm.Role{swarm.RoleArchitect, swarm.RoleDeveloper, swarm.RoleQA, swarm.RoleSecurity, swarm.RoleTester} {
		cfg, _ := registry.Config(role)
		stub := &stubRunner{}
		registry.Register(cfg, stub)
		runners[role] = stub
	}

	orch := New(Options{
		Sessions:  sessions,
		Bundles:   bundles,
		Alerts:    alerts,
		Registry:  registry,
		Workspace: t.TempDir(),
		NextResume: func(now time.Time) time.Time {
			return now.Add(2 * time.Hour)
		},
	})

	return &fixture{orch: orch, sessions: sessions, bundles: bundles, alerts: alerts, runners: runners}
}

func TestStartRunsSessionToCompletion(t *testing.T) {
	f := newFixture(t)

	session, err := f.orch.Start(context.Background(), "checkout flow")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	final, err := f.sessions.LoadSession(session.ID)
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if final.Status != swarm.SessionCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}
	for _, task := range final.Tasks {
		if task.Status != swarm.TaskCompleted {
			t.Errorf("task %s status = %s, want completed", task.ID, task.Status)
		}
	}
	for role, stub := range f.runners {
		if stub.runCount != 1 {
			t.Errorf("runner %s ran %d times, want 1", role, stub.runCount)
		}
	}
}

func TestRunSessionRejectsDisabledRole(t *testing.T) {
	f := newFixture(t)

	tasks := []*swarm.Task{{
		ID:          "task_0",
		Agent:       swarm.RolePM,
		Description: "Review requirements",
		Status:      swarm.TaskPending,
	}}
	session, err := f.sessions.CreateSession("feature", tasks)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	err = f.orch.RunSession(context.Background(), session.ID)
	if !errors.Is(err, errors.ErrRoleDisabled) {
		t.Errorf("RunSession = %v, want ErrRoleDisabled", err)
	}
}

func TestNeedsHumanPausesAndEscalates(t *testing.T) {
	f := newFixture(t)
	f.runners[swarm.RoleDeveloper].err = errors.NewNeedsHumanError(
		"DEVELOPER", "task_1", "Migration requires approval", "Apply the migration manually")

	session, err := f.orch.Start(context.Background(), "schema change")
	if !errors.IsNeedsHuman(err) {
		t.Fatalf("error = %v, want NeedsHumanError passed through", err)
	}

	final, _ := f.sessions.LoadSession(session.ID)
	if final.Status != swarm.SessionPaused {
		t.Errorf("status = %s, want paused", final.Status)
	}
	if !f.alerts.HasPending() {
		t.Error("no alert file written")
	}

	// Later stages never ran
	if f.runners[swarm.RoleQA].runCount != 0 {
		t.Error("QA ran after the developer escalation")
	}
}

func TestRetryableFailureParksBundle(t *testing.T) {
	f := newFixture(t)
	f.runners[swarm.RoleDeveloper].err = errors.NewAgentError("token limit reached", nil).WithRetryable(true)

	session, err := f.orch.Start(context.Background(), "big feature")
	if err != nil {
		t.Fatalf("parking should not be an error, got: %v", err)
	}

	final, _ := f.sessions.LoadSession(session.ID)
	if final.Status != swarm.SessionPaused {
		t.Errorf("status = %s, want paused", final.Status)
	}
	if final.BundleID == "" {
		t.Fatal("session not linked to a bundle")
	}

	b, err := f.bundles.Get(final.BundleID)
	if err != nil {
		t.Fatalf("bundle not created: %v", err)
	}
	if b.Status != bundle.StatusWaiting {
		t.Errorf("bundle status = %s, want waiting_for_tokens", b.Status)
	}
	if b.ResumeAt == nil || !b.ResumeAt.After(time.Now()) {
		t.Errorf("resume_at = %v, want a future time", b.ResumeAt)
	}
	if b.NextCmd == "" {
		t.Error("bundle has no next_cmd")
	}
}

// TestNextCmdRerunsInterruptedTask dispatches the parked bundle's next_cmd
// the way the CLI would and checks the interrupted task is re-run by its
// agent rather than stamped completed.
func TestNextCmdRerunsInterruptedTask(t *testing.T) {
	f := newFixture(t)
	f.runners[swarm.RoleDeveloper].err = errors.NewAgentError("token limit reached", nil).WithRetryable(true)
	f.runners[swarm.RoleDeveloper].once = true

	session, err := f.orch.Start(context.Background(), "feature")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	final, _ := f.sessions.LoadSession(session.ID)
	b, err := f.bundles.Get(final.BundleID)
	if err != nil {
		t.Fatalf("bundle not created: %v", err)
	}

	args := strings.Fields(b.NextCmd)
	if len(args) < 3 || args[0] != "swarm" || args[1] != "continue" {
		t.Fatalf("next_cmd = %q, want a swarm continue invocation", b.NextCmd)
	}
	sessionID := args[2]
	taskID := ""
	for i, arg := range args {
		if arg == "--task" && i+1 < len(args) {
			taskID = args[i+1]
		}
	}
	if taskID != "" {
		t.Fatalf("next_cmd = %q marks %s completed instead of re-running it", b.NextCmd, taskID)
	}

	if err := f.orch.Continue(context.Background(), sessionID, taskID); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	if f.runners[swarm.RoleDeveloper].runCount != 2 {
		t.Errorf("developer ran %d times, want 2 (the interrupted stage must re-run)", f.runners[swarm.RoleDeveloper].runCount)
	}
	resumed, _ := f.sessions.LoadSession(sessionID)
	if resumed.Status != swarm.SessionCompleted {
		t.Errorf("status = %s, want completed", resumed.Status)
	}
	if task := resumed.Task("task_1"); task.Status != swarm.TaskCompleted {
		t.Errorf("developer task status = %s, want completed after re-run", task.Status)
	}
}

func TestHardFailureFailsSession(t *testing.T) {
	f := newFixture(t)
	f.runners[swarm.RoleQA].err = errors.New("assertion blew up")

	session, err := f.orch.Start(context.Background(), "feature")
	if err == nil {
		t.Fatal("expected an error for a hard failure")
	}
	if errors.IsNeedsHuman(err) || errors.IsRetryable(err) {
		t.Errorf("hard failure misclassified: %v", err)
	}

	final, _ := f.sessions.LoadSession(session.ID)
	if final.Status != swarm.SessionFailed {
		t.Errorf("status = %s, want failed", final.Status)
	}
	if task := final.Task("task_2"); task.Status != swarm.TaskFailed {
		t.Errorf("QA task status = %s, want failed", task.Status)
	}
	if f.runners[swarm.RoleTester].runCount != 0 {
		t.Error("tester ran after the QA failure")
	}
}

func TestContinueResumesAfterPause(t *testing.T) {
	f := newFixture(t)
	f.runners[swarm.RoleDeveloper].err = errors.NewAgentError("token limit reached", nil).WithRetryable(true)
	f.runners[swarm.RoleDeveloper].once = true

	session, err := f.orch.Start(context.Background(), "feature")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// The poller would execute next_cmd, which lands here
	if err := f.orch.Continue(context.Background(), session.ID, ""); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	final, _ := f.sessions.LoadSession(session.ID)
	if final.Status != swarm.SessionCompleted {
		t.Errorf("status = %s, want completed after continue", final.Status)
	}
	if f.runners[swarm.RoleDeveloper].runCount != 2 {
		t.Errorf("developer ran %d times, want 2", f.runners[swarm.RoleDeveloper].runCount)
	}
}

func TestContinueMarksTaskCompleted(t *testing.T) {
	f := newFixture(t)
	f.runners[swarm.RoleDeveloper].err = errors.NewNeedsHumanError(
		"DEVELOPER", "task_1", "needs a person", "fix it")

	session, _ := f.orch.Start(context.Background(), "feature")

	// A person finished the developer work by hand and skips the stage
	if err := f.orch.Continue(context.Background(), session.ID, "task_1"); err != nil {
		t.Fatalf("Continue failed: %v", err)
	}

	final, _ := f.sessions.LoadSession(session.ID)
	if final.Status != swarm.SessionCompleted {
		t.Errorf("status = %s, want completed", final.Status)
	}
	if f.runners[swarm.RoleDeveloper].runCount != 1 {
		t.Errorf("developer re-ran after manual completion: %d runs", f.runners[swarm.RoleDeveloper].runCount)
	}
}
