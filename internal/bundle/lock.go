package bundle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/devswarm/swarm/internal/errors"
)

const (
	lockFileName     = ".bundle-lock"
	lockPollInterval = 100 * time.Millisecond
)

// Lock is a PID lock file guarding manifest mutations across processes.
// The lock file holds the owner's PID; a lock whose owner is no longer
// alive is stale and may be reclaimed.
type Lock struct {
	path string
	held bool
}

// NewLock creates a lock rooted at the given state directory.
func NewLock(stateDir string) *Lock {
	return &Lock{path: filepath.Join(stateDir, lockFileName)}
}

// Acquire polls until the lock is obtained, the timeout elapses, or the
// context is cancelled. Stale locks are reclaimed.
func (l *Lock) Acquire(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		ok, err := l.tryAcquire()
		if err != nil {
			return err
		}
		if ok {
			l.held = true
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", errors.ErrLockTimeout, l.path)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *Lock) tryAcquire() (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err == nil {
		_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
		f.Close()
		if werr != nil {
			os.Remove(l.path)
			return false, fmt.Errorf("failed to write lock file: %w", werr)
		}
		return true, nil
	}
	if !os.IsExist(err) {
		return false, fmt.Errorf("failed to create lock file: %w", err)
	}

	// Lock exists: reclaim it if the owner is gone
	data, rerr := os.ReadFile(l.path)
	if rerr != nil {
		// Raced with a release; retry on the next poll
		return false, nil
	}
	pid, perr := strconv.Atoi(strings.TrimSpace(string(data)))
	if perr != nil || !processAlive(pid) {
		os.Remove(l.path)
		return false, nil
	}
	return false, nil
}

// Release removes the lock file. Best effort; releasing an unheld lock is
// a no-op.
func (l *Lock) Release() {
	if !l.held {
		return
	}
	l.held = false
	os.Remove(l.path)
}

// processAlive reports whether a process with the given PID exists.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || err == syscall.EPERM
}
