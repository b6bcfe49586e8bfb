package bundle

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devswarm/swarm/internal/errors"
)

func testGlobal() GlobalConfig {
	return GlobalConfig{
		Timezone:   "America/Mexico_City",
		MaxRetries: 2,
		AutoResume: true,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), testGlobal(), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestCreateBundle(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Create("DEVELOPER", "task_2", "swarm continue swarm_1 --task task_2")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if b.Status != StatusRunning {
		t.Errorf("status = %s, want running", b.Status)
	}
	if b.Retries != 0 || b.MaxRetries != 2 {
		t.Errorf("retries = %d/%d, want 0/2", b.Retries, b.MaxRetries)
	}
	if !strings.Contains(b.ID, "_") {
		t.Errorf("bundle ID %q missing timestamp_random shape", b.ID)
	}
	if len(b.Session) != 14 {
		t.Errorf("session token %q, want yyyymmddhhmmss", b.Session)
	}

	// Directory exists
	if _, err := os.Stat(filepath.Join(s.StateDir(), "bundles", b.ID+"_"+b.Session)); err != nil {
		t.Errorf("bundle directory not created: %v", err)
	}

	// Manifest round-trip
	got, err := s.Get(b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Agent != "DEVELOPER" || got.Task != "task_2" {
		t.Errorf("bundle = %+v, want agent/task preserved", got)
	}
}

func TestGetUnknownBundle(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Get("nope"); !errors.Is(err, errors.ErrBundleNotFound) {
		t.Errorf("error = %v, want ErrBundleNotFound", err)
	}
}

func TestManifestCorruptFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte("{{{"), 0644); err != nil {
		t.Fatalf("failed to plant corrupt manifest: %v", err)
	}

	s, err := NewStore(dir, testGlobal(), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	m, err := s.Manifest()
	if err != nil {
		t.Fatalf("Manifest failed: %v", err)
	}
	if len(m.Bundles) != 0 {
		t.Errorf("bundles = %d, want empty default", len(m.Bundles))
	}
	if m.Global.MaxRetries != 2 {
		t.Errorf("max_retries = %d, want 2 from defaults", m.Global.MaxRetries)
	}

	// The store still works after the fallback
	if _, err := s.Create("QA", "task_3", ""); err != nil {
		t.Fatalf("Create after corrupt manifest failed: %v", err)
	}
}

func TestWaitForTokensAndReadyForResume(t *testing.T) {
	s := newTestStore(t)

	past, err := s.Create("DEVELOPER", "task_1", "cmd-a")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	future, err := s.Create("QA", "task_2", "cmd-b")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	// A third bundle stays running and must never be picked up
	if _, err := s.Create("TESTER", "task_3", "cmd-c"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now := time.Now().UTC()
	if err := s.WaitForTokens(past.ID, now.Add(-time.Hour), "cmd-a"); err != nil {
		t.Fatalf("WaitForTokens failed: %v", err)
	}
	if err := s.WaitForTokens(future.ID, now.Add(time.Hour), "cmd-b"); err != nil {
		t.Fatalf("WaitForTokens failed: %v", err)
	}

	ready, err := s.ReadyForResume(now)
	if err != nil {
		t.Fatalf("ReadyForResume failed: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != past.ID {
		t.Errorf("ready = %v, want only the past-due bundle", ids(ready))
	}
	if ready[0].Status != StatusWaiting {
		t.Errorf("status = %s, want waiting_for_tokens", ready[0].Status)
	}
}

func TestRetryCeiling(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Create("DEVELOPER", "task_1", "cmd")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// max_retries 2: first increment allows another attempt, second does not
	ok, err := s.IncrementRetries(b.ID)
	if err != nil {
		t.Fatalf("IncrementRetries failed: %v", err)
	}
	if !ok {
		t.Fatal("first increment: canRetry = false, want true")
	}

	ok, err = s.IncrementRetries(b.ID)
	if err != nil {
		t.Fatalf("IncrementRetries failed: %v", err)
	}
	if ok {
		t.Fatal("second increment: canRetry = true, want false")
	}

	got, err := s.Get(b.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want failed after exhausting retries", got.Status)
	}
	if got.Retries != 2 {
		t.Errorf("retries = %d, want 2", got.Retries)
	}
	if reason := got.Metadata["failure_reason"]; reason != errors.ErrRetriesExhausted.Error() {
		t.Errorf("failure_reason = %q, want %q", reason, errors.ErrRetriesExhausted.Error())
	}
}

func TestCompleteAndFail(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Create("DEVELOPER", "task_1", "cmd")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Complete(b.ID, []string{"report.md"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	got, _ := s.Get(b.ID)
	if got.Status != StatusCompleted || len(got.Artifacts) != 1 {
		t.Errorf("bundle = %s/%v, want completed with one artifact", got.Status, got.Artifacts)
	}

	other, err := s.Create("QA", "task_2", "cmd")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Fail(other.ID, "token limit"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	got, _ = s.Get(other.ID)
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
	if got.Metadata["failure_reason"] != "token limit" {
		t.Errorf("failure_reason = %q, want recorded", got.Metadata["failure_reason"])
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	s := newTestStore(t)

	b, err := s.Create("SECURITY", "task_4", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := s.SaveArtifact(b.ID, "findings.md", []byte("# Findings\n")); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}
	// Saving twice does not duplicate the entry
	if _, err := s.SaveArtifact(b.ID, "findings.md", []byte("# Findings v2\n")); err != nil {
		t.Fatalf("SaveArtifact failed: %v", err)
	}

	got, _ := s.Get(b.ID)
	if len(got.Artifacts) != 1 {
		t.Errorf("artifacts = %v, want single entry", got.Artifacts)
	}

	data, err := s.Artifact(b.ID, "findings.md")
	if err != nil {
		t.Fatalf("Artifact failed: %v", err)
	}
	if string(data) != "# Findings v2\n" {
		t.Errorf("artifact content = %q", data)
	}

	missing, err := s.Artifact(b.ID, "absent.md")
	if err != nil || missing != nil {
		t.Errorf("missing artifact = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestCleanupRetention(t *testing.T) {
	s := newTestStore(t)

	old, err := s.Create("DEVELOPER", "task_1", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Complete(old.ID, nil); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	recent, err := s.Create("QA", "task_2", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.Complete(recent.ID, nil); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	waiting, err := s.Create("TESTER", "task_3", "cmd")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := s.WaitForTokens(waiting.ID, time.Now().Add(time.Hour), "cmd"); err != nil {
		t.Fatalf("WaitForTokens failed: %v", err)
	}

	// Backdate the first bundle past the retention window
	m, _ := s.Manifest()
	m.Bundles[old.ID].CreatedAt = time.Now().UTC().Add(-8 * 24 * time.Hour)
	// Backdate the waiting bundle too: non-terminal bundles survive any age
	m.Bundles[waiting.ID].CreatedAt = time.Now().UTC().Add(-30 * 24 * time.Hour)
	s.mu.Lock()
	if err := s.writeManifestLocked(m); err != nil {
		s.mu.Unlock()
		t.Fatalf("writeManifest failed: %v", err)
	}
	s.mu.Unlock()

	removed, err := s.Cleanup(7 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if _, err := s.Get(old.ID); !errors.Is(err, errors.ErrBundleNotFound) {
		t.Error("old terminal bundle should be gone")
	}
	if _, err := s.Get(recent.ID); err != nil {
		t.Error("recent terminal bundle should survive")
	}
	if _, err := s.Get(waiting.ID); err != nil {
		t.Error("waiting bundle should survive regardless of age")
	}
	if _, err := os.Stat(filepath.Join(s.StateDir(), "bundles", old.ID+"_"+old.Session)); !os.IsNotExist(err) {
		t.Error("old bundle directory should be removed")
	}
}

func TestLockAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	lock := NewLock(dir)

	if err := lock.Acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	// A second holder times out while the lock is live
	other := NewLock(dir)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := other.Acquire(ctx, 300*time.Millisecond); !errors.Is(err, errors.ErrLockTimeout) {
		t.Errorf("error = %v, want ErrLockTimeout", err)
	}

	lock.Release()
	if err := other.Acquire(context.Background(), time.Second); err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
	other.Release()
}

func TestLockReclaimsStale(t *testing.T) {
	dir := t.TempDir()

	// Plant a lock owned by a PID that cannot be running
	if err := os.WriteFile(filepath.Join(dir, ".bundle-lock"), []byte("999999999"), 0644); err != nil {
		t.Fatalf("failed to plant stale lock: %v", err)
	}

	lock := NewLock(dir)
	if err := lock.Acquire(context.Background(), time.Second); err != nil {
		t.Errorf("stale lock not reclaimed: %v", err)
	}
	lock.Release()
}

func ids(bundles []*Bundle) []string {
	out := make([]string, len(bundles))
	for i, b := range bundles {
		out[i] = b.ID
	}
	return out
}
