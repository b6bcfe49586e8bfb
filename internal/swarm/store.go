package swarm

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
	sessionsDirName   = "sessions"
	activePointerName = "active-session.json"
)

// Manager persists and mutates sessions. Each session is one JSON document;
// every mutation rewrites the whole document with an atomic temp-then-rename
// write. Session files carry no lock: the engine assumes single-writer
// access per session, and concurrent writers are last-write-wins.
type Manager struct {
	stateDir string
	logger   *logging.Logger
	mu       sync.RWMutex
}

// NewManager creates a session manager rooted at the given state directory.
// The sessions subdirectory is created if it does not exist.
func NewManager(stateDir string, logger *logging.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(filepath.Join(stateDir, sessionsDirName), 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Manager{stateDir: stateDir, logger: logger}, nil
}

// StateDir returns the root state directory for this manager.
func (m *Manager) StateDir() string {
	return m.stateDir
}

// CreateSession creates and persists a new active session owning the given
// tasks, and records it as the active session.
func (m *Manager) CreateSession(featureName string, tasks []*Task) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if featureName == "" {
		return nil, errors.NewValidationError("feature name must not be empty").WithField("featureName")
	}
	if len(tasks) == 0 {
		return nil, errors.NewValidationError("a session needs at least one task").WithField("tasks")
	}

	now := time.Now().UTC()
	session := &Session{
		ID:           generateSessionID(now),
		FeatureName:  featureName,
		Status:       SessionActive,
		Progress:     0,
		CurrentAgent: RoleOrchestrator,
		Tasks:        tasks,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.saveSessionLocked(session); err != nil {
		return nil, err
	}
	if err := m.setActiveLocked(session.ID); err != nil {
		return nil, err
	}

	m.logger.WithSession(session.ID).Info("session created",
		"feature", featureName, "tasks", len(tasks))

	return session, nil
}

// LoadSession reads a session by ID. A missing file and an unparseable file
// are indistinguishable: both return ErrSessionNotFound, so callers treat
// "not found" and "corrupt" identically.
func (m *Manager) LoadSession(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.loadSessionLocked(sessionID)
}

func (m *Manager) loadSessionLocked(sessionID string) (*Session, error) {
	data, err := os.ReadFile(m.sessionPath(sessionID))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, sessionID)
	}

	return &session, nil
}

// SaveSession persists a session, stamping UpdatedAt.
func (m *Manager) SaveSession(session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.saveSessionLocked(session)
}

func (m *Manager) saveSessionLocked(session *Session) error {
	if session.ID == "" {
		return errors.NewValidationError("session ID must not be empty").WithField("id")
	}

	session.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	return atomicWriteFile(m.sessionPath(session.ID), data, 0644)
}

// ActiveSession dereferences the active-session pointer and loads that
// session. Returns (nil, nil) when no pointer exists or it cannot be
// resolved; "no active session" is a normal state, not an error.
func (m *Manager) ActiveSession() (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(m.stateDir, activePointerName))
	if err != nil {
		return nil, nil
	}

	var ptr activePointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		return nil, nil
	}

	session, err := m.loadSessionLocked(ptr.SessionID)
	if err != nil {
		return nil, nil
	}
	return session, nil
}

// SetActiveSession records the given session as the active one.
func (m *Manager) SetActiveSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.setActiveLocked(sessionID)
}

func (m *Manager) setActiveLocked(sessionID string) error {
	data, err := json.MarshalIndent(activePointer{SessionID: sessionID}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal active-session pointer: %w", err)
	}
	return atomicWriteFile(filepath.Join(m.stateDir, activePointerName), data, 0644)
}

// ListSessions loads every parseable session, newest first.
// Unparseable files are skipped.
func (m *Manager) ListSessions() ([]*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(m.stateDir, sessionsDirName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []*Session
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		session, err := m.loadSessionLocked(id)
		if err != nil {
			continue
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})

	return sessions, nil
}

// sessionPath returns the file path for a session document.
func (m *Manager) sessionPath(sessionID string) string {
	return filepath.Join(m.stateDir, sessionsDirName, sessionID+".json")
}

// generateSessionID produces an ID of the form swarm_<unixms>_<random>.
func generateSessionID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("swarm_%d_%s", now.UnixMilli(), random)
}

// atomicWriteFile writes data to a file atomically by writing to a temporary
// file first, then renaming. This ensures the target file is never observed
// in a partially-written state.
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
