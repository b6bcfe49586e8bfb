package autoresume

import (
	"testing"
	"time"

	"github.com/devswarm/swarm/internal/config"
)

func windowCfg(tz string, windows ...string) *config.AutoResumeConfig {
	return &config.AutoResumeConfig{
		Enabled:            true,
		Timezone:           tz,
		Windows:            windows,
		WindowSlackMinutes: 30,
		UrgentAfterHours:   5,
	}
}

func TestInWindow(t *testing.T) {
	cfg := windowCfg("UTC", "02:00", "07:00", "13:00", "19:00")

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"exactly on a window", time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC), true},
		{"inside slack before", time.Date(2026, 9, 1, 12, 35, 0, 0, time.UTC), true},
		{"inside slack after", time.Date(2026, 9, 1, 13, 29, 0, 0, time.UTC), true},
		{"just past slack", time.Date(2026, 9, 1, 13, 31, 0, 0, time.UTC), false},
		{"between windows", time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), false},
		{"late night outside", time.Date(2026, 9, 1, 22, 30, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InWindow(tt.now, cfg)
			if err != nil {
				t.Fatalf("InWindow failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("InWindow(%s) = %v, want %v", tt.now.Format("15:04"), got, tt.want)
			}
		})
	}
}

func TestInWindowWrapsMidnight(t *testing.T) {
	cfg := windowCfg("UTC", "00:10")

	got, err := InWindow(time.Date(2026, 9, 1, 23, 50, 0, 0, time.UTC), cfg)
	if err != nil {
		t.Fatalf("InWindow failed: %v", err)
	}
	if !got {
		t.Error("23:50 should be inside the slack of a 00:10 window")
	}
}

func TestInWindowHonorsTimezone(t *testing.T) {
	cfg := windowCfg("America/Mexico_City", "13:00")

	// 18:30 UTC is 12:30 in Mexico City, within slack of 13:00
	got, err := InWindow(time.Date(2026, 1, 15, 18, 30, 0, 0, time.UTC), cfg)
	if err != nil {
		t.Fatalf("InWindow failed: %v", err)
	}
	if !got {
		t.Error("18:30 UTC should fall in the 13:00 Mexico City window")
	}

	// The same wall-clock in UTC terms is out of window
	got, err = InWindow(time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC), cfg)
	if err != nil {
		t.Fatalf("InWindow failed: %v", err)
	}
	if got {
		t.Error("08:00 UTC (02:00 Mexico City) should be outside the 13:00 window")
	}
}

func TestInWindowRejectsBadConfig(t *testing.T) {
	if _, err := InWindow(time.Now(), windowCfg("Not/AZone", "13:00")); err == nil {
		t.Error("expected an error for an unknown timezone")
	}
	if _, err := InWindow(time.Now(), windowCfg("UTC", "25:99")); err == nil {
		t.Error("expected an error for a malformed window")
	}
}

func TestNextWindow(t *testing.T) {
	cfg := windowCfg("UTC", "02:00", "07:00", "13:00", "19:00")

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			"next window later today",
			time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
		},
		{
			"early morning picks first window",
			time.Date(2026, 9, 1, 0, 30, 0, 0, time.UTC),
			time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC),
		},
		{
			"past the last window rolls to tomorrow",
			time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC),
			time.Date(2026, 9, 2, 2, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextWindow(tt.now, cfg)
			if err != nil {
				t.Fatalf("NextWindow failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("NextWindow(%s) = %s, want %s", tt.now, got, tt.want)
			}
		})
	}
}

func TestNextWindowNoWindows(t *testing.T) {
	if _, err := NextWindow(time.Now(), windowCfg("UTC")); err == nil {
		t.Error("expected an error with no windows configured")
	}
}
