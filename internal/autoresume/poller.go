package autoresume

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/devswarm/swarm/internal/alert"
	"github.com/devswarm/swarm/internal/bundle"
	"github.com/devswarm/swarm/internal/config"
	"github.com/devswarm/swarm/internal/errors"
	"github.com/devswarm/swarm/internal/logging"
)

// CommandExecutor runs a bundle's resume command. The default executor
// shells out; tests substitute their own.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd, bundleID string) error
}

// ShellExecutor runs commands through sh -c with BUNDLE_ID exported and an
// optional timeout (zero disables it).
type ShellExecutor struct {
	Timeout time.Duration
}

// Execute implements CommandExecutor.
func (e *ShellExecutor) Execute(ctx context.Context, cmd, bundleID string) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Env = append(os.Environ(), "BUNDLE_ID="+bundleID)

	out, err := c.CombinedOutput()
	if err != nil {
		return fmt.Errorf("command failed: %w (output: %s)", err, truncateOutput(out))
	}
	return nil
}

func truncateOutput(out []byte) string {
	const max = 500
	if len(out) > max {
		out = out[:max]
	}
	return string(out)
}

// Poller runs one resume cycle per invocation.
type Poller struct {
	cfg      *config.AutoResumeConfig
	bundles  *bundle.Store
	lock     *bundle.Lock
	alerts   *alert.System
	executor CommandExecutor
	logger   *logging.Logger

	// now is stubbed in tests.
	now func() time.Time
}

// Options configures a Poller. Executor defaults to a ShellExecutor with
// the configured command timeout.
type Options struct {
	Config   *config.AutoResumeConfig
	Bundles  *bundle.Store
	Lock     *bundle.Lock
	Alerts   *alert.System
	Executor CommandExecutor
	Logger   *logging.Logger
}

// New creates a poller.
func New(opts Options) *Poller {
	if opts.Executor == nil {
		opts.Executor = &ShellExecutor{Timeout: opts.Config.CommandTimeout()}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger()
	}
	if opts.Lock == nil {
		opts.Lock = bundle.NewLock(opts.Bundles.StateDir())
	}
	return &Poller{
		cfg:      opts.Config,
		bundles:  opts.Bundles,
		lock:     opts.Lock,
		alerts:   opts.Alerts,
		executor: opts.Executor,
		logger:   opts.Logger,
		now:      time.Now,
	}
}

// Run executes one poller cycle:
//
//   - disabled config: no-op
//   - lock held elsewhere: skip the cycle with a warning
//   - ready bundles are split into urgent (stale past the urgent
//     threshold, processed regardless of windows) and normal (processed
//     only inside a window)
//   - per bundle: retries are bumped first; an exhausted bundle raises a
//     NEED-HUMAN alert instead of running; command success completes the
//     bundle, command failure reschedules it to the next window
func (p *Poller) Run(ctx context.Context) error {
	if !p.cfg.Enabled {
		p.logger.Debug("autoresume disabled")
		return nil
	}

	if err := p.lock.Acquire(ctx, p.cfg.LockTimeout()); err != nil {
		if errors.Is(err, errors.ErrLockTimeout) {
			p.logger.Warn("could not acquire lock, another poller may be running")
			return nil
		}
		return err
	}
	defer p.lock.Release()

	now := p.now()
	ready, err := p.bundles.ReadyForResume(now)
	if err != nil {
		return err
	}
	if len(ready) == 0 {
		p.logger.Debug("no bundles ready for resume")
		return nil
	}

	inWindow, err := InWindow(now, p.cfg)
	if err != nil {
		return err
	}

	staleCutoff := now.Add(-p.cfg.UrgentAfter())
	var toProcess []*bundle.Bundle
	urgent := 0
	for _, b := range ready {
		if !b.UpdatedAt.After(staleCutoff) {
			toProcess = append(toProcess, b)
			urgent++
			continue
		}
		if inWindow {
			toProcess = append(toProcess, b)
		}
	}

	if len(toProcess) == 0 {
		next, werr := NextWindow(now, p.cfg)
		if werr == nil {
			p.logger.Debug("not in resume window",
				"next_window", next.Format(time.RFC3339), "waiting", len(ready))
		}
		return nil
	}

	p.logger.Info("resuming bundles", "total", len(toProcess), "urgent", urgent)

	succeeded, failed := 0, 0
	for _, b := range toProcess {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.processBundle(ctx, b, now) {
			succeeded++
		} else {
			failed++
		}
	}

	p.logger.Info("autoresume cycle finished",
		"total", len(toProcess), "succeeded", succeeded, "failed", failed)
	return nil
}

func (p *Poller) processBundle(ctx context.Context, b *bundle.Bundle, now time.Time) bool {
	log := p.logger.WithBundle(b.ID)
	log.Info("processing bundle", "agent", b.Agent, "task", b.Task, "retries", b.Retries)

	canRetry, err := p.bundles.IncrementRetries(b.ID)
	if err != nil {
		log.Error("failed to bump retries", "error", err)
		return false
	}
	if !canRetry {
		log.Warn("bundle is not retryable", "error", errors.ErrRetriesExhausted)
		if _, aerr := p.alerts.NeedHuman(alert.Alert{
			Agent:  "ORCHESTRATOR",
			Task:   "autoresume",
			Reason: fmt.Sprintf("Bundle %s exhausted its retries", b.ID),
			Action: "Review the bundle and resolve the underlying failure by hand",
			Details: fmt.Sprintf("Agent: %s\nTask: %s\nCreated: %s\nNext command: %s",
				b.Agent, b.Task, b.CreatedAt.Format(time.RFC3339), b.NextCmd),
			Urgency: alert.UrgencyHigh,
		}); aerr != nil {
			log.Error("failed to raise alert", "error", aerr)
		}
		return false
	}

	if b.NextCmd == "" {
		log.Warn("bundle has no resume command")
		if ferr := p.bundles.Fail(b.ID, "no next_cmd specified"); ferr != nil {
			log.Error("failed to fail bundle", "error", ferr)
		}
		return false
	}

	if err := p.executor.Execute(ctx, b.NextCmd, b.ID); err != nil {
		log.Warn("resume command failed, rescheduling", "error", err)
		next, werr := NextWindow(now, p.cfg)
		if werr != nil {
			next = now.Add(time.Hour)
		}
		if rerr := p.bundles.WaitForTokens(b.ID, next, b.NextCmd); rerr != nil {
			log.Error("failed to reschedule bundle", "error", rerr)
		}
		return false
	}

	if err := p.bundles.Complete(b.ID, b.Artifacts); err != nil {
		log.Error("failed to complete bundle", "error", err)
		return false
	}
	log.Info("bundle resumed successfully")
	return true
}
