package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devswarm/swarm/internal/errors"
	"github.com/devswarm/swarm/internal/logging"
)

const (
	manifestName    = "manifest.json"
	bundlesDirName  = "bundles"
	manifestVersion = "1.0.0"
)

// Store persists bundles in a single manifest plus one directory per
// bundle for artifacts. Manifest reads fall back to a fresh default when
// the file is missing or corrupt; a damaged manifest must never stop the
// resume path. Writes rewrite the whole document atomically.
type Store struct {
	stateDir string
	global   GlobalConfig
	logger   *logging.Logger
	mu       sync.Mutex
}

// NewStore creates a bundle store rooted at the state directory.
func NewStore(stateDir string, global GlobalConfig, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if global.MaxRetries < 1 {
		global.MaxRetries = 2
	}
	if err := os.MkdirAll(filepath.Join(stateDir, bundlesDirName), 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundles directory: %w", err)
	}
	return &Store{stateDir: stateDir, global: global, logger: logger}, nil
}

// StateDir returns the root state directory for this store.
func (s *Store) StateDir() string {
	return s.stateDir
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.stateDir, manifestName)
}

func (s *Store) bundleDir(b *Bundle) string {
	return filepath.Join(s.stateDir, bundlesDirName, b.ID+"_"+b.Session)
}

// Manifest reads the manifest, falling back to a default when the file is
// missing or unparseable.
func (s *Store) Manifest() (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readManifestLocked(), nil
}

func (s *Store) readManifestLocked() *Manifest {
	data, err := os.ReadFile(s.manifestPath())
	if err != nil {
		return s.defaultManifest()
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		s.logger.Warn("manifest unreadable, starting fresh", "error", err)
		return s.defaultManifest()
	}

	if m.Version == "" {
		m.Version = manifestVersion
	}
	if m.Bundles == nil {
		m.Bundles = make(map[string]*Bundle)
	}
	if m.Global.Timezone == "" {
		m.Global.Timezone = s.global.Timezone
	}
	if m.Global.MaxRetries < 1 {
		m.Global.MaxRetries = s.global.MaxRetries
	}
	return &m
}

func (s *Store) defaultManifest() *Manifest {
	return &Manifest{
		Version:     manifestVersion,
		LastSession: sessionToken(time.Now().UTC()),
		Bundles:     make(map[string]*Bundle),
		Global:      s.global,
	}
}

func (s *Store) writeManifestLocked(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return atomicWriteFile(s.manifestPath(), data, 0644)
}

// Create registers a new running bundle for an interrupted task and creates
// its artifact directory.
func (s *Store) Create(agent, task, nextCmd string) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	b := &Bundle{
		ID:         bundleID(now),
		Session:    sessionToken(now),
		Agent:      agent,
		Task:       task,
		Status:     StatusRunning,
		CreatedAt:  now,
		UpdatedAt:  now,
		NextCmd:    nextCmd,
		Retries:    0,
		MaxRetries: s.global.MaxRetries,
		Artifacts:  []string{},
		Metadata:   map[string]string{},
	}

	if err := os.MkdirAll(s.bundleDir(b), 0755); err != nil {
		return nil, fmt.Errorf("failed to create bundle directory: %w", err)
	}

	m := s.readManifestLocked()
	m.Bundles[b.ID] = b
	m.LastSession = b.Session
	if err := s.writeManifestLocked(m); err != nil {
		return nil, err
	}

	s.logger.WithBundle(b.ID).Info("bundle created", "agent", agent, "task", task)
	return b, nil
}

// Get returns one bundle by ID.
func (s *Store) Get(bundleID string) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.readManifestLocked()
	b, ok := m.Bundles[bundleID]
	if !ok {
		return nil, errors.NewBundleError("bundle not found", errors.ErrBundleNotFound).WithBundleID(bundleID)
	}
	return b, nil
}

// List returns every bundle, newest first.
func (s *Store) List() ([]*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.readManifestLocked()
	bundles := make([]*Bundle, 0, len(m.Bundles))
	for _, b := range m.Bundles {
		bundles = append(bundles, b)
	}
	sort.Slice(bundles, func(i, j int) bool {
		return bundles[i].CreatedAt.After(bundles[j].CreatedAt)
	})
	return bundles, nil
}

// Update is a partial update merged into a bundle; nil fields are left
// untouched. UpdatedAt is stamped on every call.
type Update struct {
	Status   *Status
	ResumeAt *time.Time
	NextCmd  *string

	// Artifacts replaces the artifact list when non-nil.
	Artifacts []string

	// Metadata entries are merged in.
	Metadata map[string]string
}

// Apply merges an update into a bundle.
func (s *Store) Apply(bundleID string, update Update) (*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyLocked(bundleID, update)
}

func (s *Store) applyLocked(bundleID string, update Update) (*Bundle, error) {
	m := s.readManifestLocked()
	b, ok := m.Bundles[bundleID]
	if !ok {
		return nil, errors.NewBundleError("cannot update bundle", errors.ErrBundleNotFound).WithBundleID(bundleID)
	}

	if update.Status != nil {
		b.Status = *update.Status
	}
	if update.ResumeAt != nil {
		b.ResumeAt = update.ResumeAt
	}
	if update.NextCmd != nil {
		b.NextCmd = *update.NextCmd
	}
	if update.Artifacts != nil {
		b.Artifacts = update.Artifacts
	}
	for k, v := range update.Metadata {
		if b.Metadata == nil {
			b.Metadata = map[string]string{}
		}
		b.Metadata[k] = v
	}
	b.UpdatedAt = time.Now().UTC()

	if err := s.writeManifestLocked(m); err != nil {
		return nil, err
	}
	return b, nil
}

// WaitForTokens parks a bundle until resumeAt with the command that
// resumes it.
func (s *Store) WaitForTokens(bundleID string, resumeAt time.Time, nextCmd string) error {
	status := StatusWaiting
	_, err := s.Apply(bundleID, Update{
		Status:   &status,
		ResumeAt: &resumeAt,
		NextCmd:  &nextCmd,
	})
	if err != nil {
		return err
	}
	s.logger.WithBundle(bundleID).Info("bundle waiting for tokens",
		"resume_at", resumeAt.Format(time.RFC3339), "next_cmd", nextCmd)
	return nil
}

// IncrementRetries bumps the retry counter. The returned bool reports
// whether another attempt is allowed: when the incremented count reaches
// the ceiling, the bundle is marked failed and false is returned.
func (s *Store) IncrementRetries(bundleID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.readManifestLocked()
	b, ok := m.Bundles[bundleID]
	if !ok {
		return false, errors.NewBundleError("cannot increment retries", errors.ErrBundleNotFound).WithBundleID(bundleID)
	}

	b.Retries++
	b.UpdatedAt = time.Now().UTC()

	max := b.MaxRetries
	if max < 1 {
		max = m.Global.MaxRetries
	}
	canRetry := b.Retries < max
	if !canRetry {
		b.Status = StatusFailed
		if b.Metadata == nil {
			b.Metadata = map[string]string{}
		}
		b.Metadata["failure_reason"] = errors.ErrRetriesExhausted.Error()
		s.logger.WithBundle(bundleID).Error("bundle exhausted retries",
			"retries", b.Retries, "max_retries", max)
	}

	if err := s.writeManifestLocked(m); err != nil {
		return false, err
	}
	return canRetry, nil
}

// Complete marks a bundle completed with its final artifact list.
func (s *Store) Complete(bundleID string, artifacts []string) error {
	status := StatusCompleted
	if artifacts == nil {
		artifacts = []string{}
	}
	_, err := s.Apply(bundleID, Update{Status: &status, Artifacts: artifacts})
	if err != nil {
		return err
	}
	s.logger.WithBundle(bundleID).Info("bundle completed", "artifacts", len(artifacts))
	return nil
}

// Fail marks a bundle failed, recording the reason in its metadata.
func (s *Store) Fail(bundleID, reason string) error {
	status := StatusFailed
	_, err := s.Apply(bundleID, Update{
		Status:   &status,
		Metadata: map[string]string{"failure_reason": reason},
	})
	if err != nil {
		return err
	}
	s.logger.WithBundle(bundleID).Warn("bundle failed", "reason", reason)
	return nil
}

// ReadyForResume returns the bundles whose resume time has arrived:
// status waiting_for_tokens with a resume_at at or before now. Bundles
// with no resume time never qualify.
func (s *Store) ReadyForResume(now time.Time) ([]*Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.readManifestLocked()
	var ready []*Bundle
	for _, b := range m.Bundles {
		if b.Status != StatusWaiting || b.ResumeAt == nil {
			continue
		}
		if !b.ResumeAt.After(now) {
			ready = append(ready, b)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	return ready, nil
}

// SaveArtifact writes a file into the bundle's directory and records it.
func (s *Store) SaveArtifact(bundleID, filename string, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.readManifestLocked()
	b, ok := m.Bundles[bundleID]
	if !ok {
		return "", errors.NewBundleError("cannot save artifact", errors.ErrBundleNotFound).WithBundleID(bundleID)
	}

	path := filepath.Join(s.bundleDir(b), filename)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", filename, err)
	}

	if !containsString(b.Artifacts, filename) {
		b.Artifacts = append(b.Artifacts, filename)
		b.UpdatedAt = time.Now().UTC()
		if err := s.writeManifestLocked(m); err != nil {
			return "", err
		}
	}
	return path, nil
}

// Artifact reads a file from the bundle's directory. A missing file
// returns (nil, nil).
func (s *Store) Artifact(bundleID, filename string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.readManifestLocked()
	b, ok := m.Bundles[bundleID]
	if !ok {
		return nil, errors.NewBundleError("cannot read artifact", errors.ErrBundleNotFound).WithBundleID(bundleID)
	}

	data, err := os.ReadFile(filepath.Join(s.bundleDir(b), filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", filename, err)
	}
	return data, nil
}

// Cleanup removes terminal bundles created before the retention cutoff,
// deleting both the manifest entry and the bundle directory. Returns the
// number of bundles removed.
func (s *Store) Cleanup(maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.readManifestLocked()
	cutoff := time.Now().UTC().Add(-maxAge)
	removed := 0

	for id, b := range m.Bundles {
		if !b.Status.IsTerminal() || !b.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(s.bundleDir(b)); err != nil {
			s.logger.WithBundle(id).Warn("failed to remove bundle directory", "error", err)
			continue
		}
		delete(m.Bundles, id)
		removed++
	}

	if removed > 0 {
		if err := s.writeManifestLocked(m); err != nil {
			return removed, err
		}
		s.logger.Info("bundle cleanup finished", "removed", removed)
	}
	return removed, nil
}

// bundleID produces an ID of the form <yyyymmddhhmm>_<random>.
func bundleID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%s", now.Format("200601021504"), random)
}

// sessionToken produces a second-resolution token naming the run that
// created a bundle.
func sessionToken(now time.Time) string {
	return now.Format("20060102150405")
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// atomicWriteFile writes data via a temp file and rename so readers never
// observe a partial manifest.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
