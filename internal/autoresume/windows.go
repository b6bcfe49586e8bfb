// Package autoresume implements the scheduled bundle resume poller. It is
// meant to run from cron: each invocation takes the manifest lock, picks
// the bundles whose resume time has arrived, and re-executes their resume
// commands inside the configured time windows.
package autoresume

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devswarm/swarm/internal/config"
)

// parseWindow splits an "HH:MM" window into hour and minute.
func parseWindow(window string) (hour, minute int, err error) {
	parts := strings.SplitN(window, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid window %q", window)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid window %q", window)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid window %q", window)
	}
	return hour, minute, nil
}

// InWindow reports whether now falls within the slack of any configured
// window, evaluated in the configured timezone.
func InWindow(now time.Time, cfg *config.AutoResumeConfig) (bool, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return false, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	local := now.In(loc)
	currentMinutes := local.Hour()*60 + local.Minute()
	slack := int(cfg.WindowSlack().Minutes())

	for _, window := range cfg.Windows {
		hour, minute, err := parseWindow(window)
		if err != nil {
			return false, err
		}
		target := hour*60 + minute

		diff := currentMinutes - target
		if diff < 0 {
			diff = -diff
		}
		// Windows near midnight wrap around the day boundary
		if wrapped := 24*60 - diff; wrapped < diff {
			diff = wrapped
		}
		if diff <= slack {
			return true, nil
		}
	}
	return false, nil
}

// NextWindow returns the start of the next configured window after now:
// the earliest window later today, or the earliest window tomorrow when
// every window today has passed. Evaluated in the configured timezone.
func NextWindow(now time.Time, cfg *config.AutoResumeConfig) (time.Time, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	local := now.In(loc)
	var earliest time.Time
	var next time.Time

	for _, window := range cfg.Windows {
		hour, minute, err := parseWindow(window)
		if err != nil {
			return time.Time{}, err
		}

		candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		if earliest.IsZero() || candidate.Before(earliest) {
			earliest = candidate
		}
		if candidate.After(local) && (next.IsZero() || candidate.Before(next)) {
			next = candidate
		}
	}

	if next.IsZero() {
		if earliest.IsZero() {
			return time.Time{}, fmt.Errorf("no resume windows configured")
		}
		next = earliest.AddDate(0, 0, 1)
	}
	return next, nil
}
