package autoresume

import (
	"time"

	"github.com/devswarm/swarm/internal/config"
)

// StatusInfo summarizes the poller's state for the CLI.
type StatusInfo struct {
	Enabled    bool
	Timezone   string
	Windows    []string
	InWindow   bool
	NextWindow time.Time
	Pending    int
}

// Status reports whether the poller is enabled, whether now is inside a
// window, when the next window opens, and how many bundles are waiting.
func (p *Poller) Status() (*StatusInfo, error) {
	now := p.now()

	info := &StatusInfo{
		Enabled:  p.cfg.Enabled,
		Timezone: p.cfg.Timezone,
		Windows:  p.cfg.Windows,
	}

	inWindow, err := InWindow(now, p.cfg)
	if err != nil {
		return nil, err
	}
	info.InWindow = inWindow

	next, err := NextWindow(now, p.cfg)
	if err != nil {
		return nil, err
	}
	info.NextWindow = next

	ready, err := p.bundles.ReadyForResume(now)
	if err != nil {
		return nil, err
	}
	info.Pending = len(ready)

	return info, nil
}

// NextResumeTime returns the next window start for scheduling parked work,
// falling back to an hour out when the configuration is unusable.
func NextResumeTime(cfg *config.AutoResumeConfig) func(now time.Time) time.Time {
	return func(now time.Time) time.Time {
		next, err := NextWindow(now, cfg)
		if err != nil {
			return now.Add(time.Hour)
		}
		return next
	}
}
