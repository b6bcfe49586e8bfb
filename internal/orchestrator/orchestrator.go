// Package orchestrator drives sessions through their task chain: it picks
// the next eligible task, runs the owning agent, and decides what an agent
// failure means: escalate to a person, park the work in a bundle, or fail
// the session.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/devswarm/swarm/internal/agent"
	"github.com/devswarm/swarm/internal/alert"
	"github.com/devswarm/swarm/internal/bundle"
	"github.com/devswarm/swarm/internal/errors"
	"github.com/devswarm/swarm/internal/logging"
	"github.com/devswarm/swarm/internal/swarm"
)

// NextResumeFunc returns the earliest time parked work may be retried,
// given the current time. Wired to the auto-resume window schedule.
type NextResumeFunc func(now time.Time) time.Time

// Options configures an Orchestrator.
type Options struct {
	Sessions *swarm.Manager
	Bundles  *bundle.Store
	Alerts   *alert.System
	Registry *agent.Registry

	// Workspace is where agents write their artifacts.
	Workspace string

	// NextResume schedules bundle retries. When nil, retries are
	// scheduled one hour out.
	NextResume NextResumeFunc

	Logger *logging.Logger
}

// Orchestrator executes the agent workflow for sessions.
type Orchestrator struct {
	sessions   *swarm.Manager
	bundles    *bundle.Store
	alerts     *alert.System
	registry   *agent.Registry
	workspace  string
	nextResume NextResumeFunc
	logger     *logging.Logger
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.NextResume == nil {
		opts.NextResume = func(now time.Time) time.Time { return now.Add(time.Hour) }
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	return &Orchestrator{
		sessions:   opts.Sessions,
		bundles:    opts.Bundles,
		alerts:     opts.Alerts,
		registry:   opts.Registry,
		workspace:  opts.Workspace,
		nextResume: opts.NextResume,
		logger:     opts.Logger,
	}
}

// Start creates a session for a feature from the registered workflow and
// runs it.
func (o *Orchestrator) Start(ctx context.Context, featureName string) (*swarm.Session, error) {
	tasks, err := swarm.BuildTasks(o.registry.Stages(), o.registry)
	if err != nil {
		return nil, err
	}
	session, err := o.sessions.CreateSession(featureName, tasks)
	if err != nil {
		return nil, err
	}
	return session, o.RunSession(ctx, session.ID)
}

// RunSession advances a session until it completes, pauses, or fails.
// A NeedsHumanError from an agent pauses the session and is returned
// unchanged; a retryable agent failure parks the task in a bundle and
// pauses the session without error.
func (o *Orchestrator) RunSession(ctx context.Context, sessionID string) error {
	log := o.logger.WithSession(sessionID)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		session, err := o.sessions.LoadSession(sessionID)
		if err != nil {
			return err
		}
		switch session.Status {
		case swarm.SessionCompleted:
			log.Info("session completed", "progress", session.Progress)
			return nil
		case swarm.SessionPaused, swarm.SessionFailed:
			log.Info("session not runnable", "status", session.Status)
			return nil
		}

		task, err := o.sessions.NextTask(sessionID)
		if err != nil {
			return err
		}
		if task == nil {
			// Active session with nothing runnable: the chain is stuck
			// behind a task that ended in a non-completed state
			return errors.NewSessionError("no runnable task remains", nil).WithSessionID(sessionID)
		}

		if err := o.runTask(ctx, session, task); err != nil {
			return err
		}
	}
}

func (o *Orchestrator) runTask(ctx context.Context, session *swarm.Session, task *swarm.Task) error {
	log := o.logger.WithSession(session.ID).WithTask(task.ID).WithAgent(task.Agent.String())

	runner, ok := o.registry.Runner(task.Agent)
	if !ok {
		return errors.NewValidationError("task references a role with no registered agent").
			WithField("agent").
			WithValue(task.Agent).
			WithCause(errors.ErrUnknownRole)
	}
	if cfg, ok := o.registry.Config(task.Agent); ok && cfg.Disabled {
		return errors.NewValidationError("task references a disabled role").
			WithField("agent").
			WithValue(task.Agent).
			WithCause(errors.ErrRoleDisabled)
	}

	if _, err := o.sessions.UpdateTask(session.ID, task.ID, swarm.StatusUpdate(swarm.TaskInProgress)); err != nil {
		return err
	}
	log.Info("task started", "description", task.Description)

	rc := agent.NewContext(session.ID, task.ID, session.FeatureName, o.workspace, log,
		func(progress int, message string) error {
			_, err := o.sessions.UpdateTask(session.ID, task.ID, swarm.TaskUpdate{
				Progress:     &progress,
				AppendOutput: []string{message},
			})
			return err
		})

	runErr := runner.Run(ctx, rc)
	if runErr == nil {
		_, err := o.sessions.UpdateTask(session.ID, task.ID, swarm.TaskUpdate{
			Status:       statusPtr(swarm.TaskCompleted),
			AddArtifacts: rc.Artifacts(),
		})
		if err != nil {
			return err
		}
		log.Info("task completed", "artifacts", len(rc.Artifacts()))
		return nil
	}

	if errors.IsNeedsHuman(runErr) {
		return o.escalate(session, task, runErr)
	}
	if errors.IsRetryable(runErr) {
		return o.park(session, task, runErr)
	}

	if _, err := o.sessions.UpdateTask(session.ID, task.ID, swarm.StatusUpdate(swarm.TaskFailed)); err != nil {
		return err
	}
	if err := o.sessions.FailSession(session.ID); err != nil {
		return err
	}
	log.Error("task failed", "error", runErr)
	return errors.NewAgentError("agent execution failed", runErr).
		WithAgent(task.Agent.String()).
		WithTask(task.ID)
}

// escalate raises a NEED-HUMAN alert and pauses the session. The original
// error is returned unchanged so the CLI can classify it.
func (o *Orchestrator) escalate(session *swarm.Session, task *swarm.Task, runErr error) error {
	var nh *errors.NeedsHumanError
	errors.As(runErr, &nh)

	a := alert.Alert{
		Agent:  task.Agent.String(),
		Task:   task.ID,
		Reason: runErr.Error(),
		Action: "Review the instruction file, resolve the issue, then run swarm resume",
	}
	if nh != nil {
		a.Reason = nh.Reason
		if nh.Action != "" {
			a.Action = nh.Action
		}
		a.Files = nh.Files
	}

	if _, err := o.alerts.NeedHuman(a); err != nil {
		o.logger.WithSession(session.ID).Error("failed to write alert", "error", err)
	}
	if err := o.sessions.PauseSession(session.ID, a.Reason); err != nil {
		return err
	}
	return runErr
}

// park creates a bundle for the interrupted task, schedules it for the
// next resume window, and pauses the session. Parking is not an error:
// the poller picks the bundle up later.
func (o *Orchestrator) park(session *swarm.Session, task *swarm.Task, runErr error) error {
	// No --task flag: the interrupted task must re-run, not be marked done.
	nextCmd := fmt.Sprintf("swarm continue %s", session.ID)

	b, err := o.bundles.Create(task.Agent.String(), task.ID, nextCmd)
	if err != nil {
		return err
	}

	resumeAt := o.nextResume(time.Now())
	if err := o.bundles.WaitForTokens(b.ID, resumeAt, nextCmd); err != nil {
		return err
	}

	loaded, err := o.sessions.LoadSession(session.ID)
	if err != nil {
		return err
	}
	loaded.BundleID = b.ID
	if err := o.sessions.SaveSession(loaded); err != nil {
		return errors.Wrap(err, "failed to record bundle on session")
	}

	if err := o.sessions.PauseSession(session.ID, runErr.Error()); err != nil {
		return err
	}

	o.logger.WithSession(session.ID).WithBundle(b.ID).Info("task parked in bundle",
		"task", task.ID, "resume_at", resumeAt.Format(time.RFC3339), "reason", runErr.Error())
	return nil
}

// Continue marks a task completed (when given) and resumes the session's
// run loop. It is the target of a bundle's next_cmd.
func (o *Orchestrator) Continue(ctx context.Context, sessionID, completedTaskID string) error {
	if completedTaskID != "" {
		if _, err := o.sessions.UpdateTask(sessionID, completedTaskID, swarm.StatusUpdate(swarm.TaskCompleted)); err != nil {
			return errors.Wrapf(err, "cannot mark task %s completed", completedTaskID)
		}
	}

	session, err := o.sessions.LoadSession(sessionID)
	if err != nil {
		return err
	}
	if session.Status == swarm.SessionPaused {
		if err := o.sessions.ResumeSession(sessionID); err != nil {
			return err
		}
	}

	return o.RunSession(ctx, sessionID)
}

func statusPtr(s swarm.TaskStatus) *swarm.TaskStatus {
	return &s
}
