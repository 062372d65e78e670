package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gudastudio/maw/internal/errors"
	"github.com/gudastudio/maw/internal/event"
	"github.com/gudastudio/maw/internal/logging"
)

const tableFileName = "sessions.json"

// sessionTable is the on-disk shape of the catalog. Order in the slice is
// insertion order.
type sessionTable struct {
	Sessions []*UnifiedSession `json:"sessions"`
}

// Manager owns the session catalog. All reads return deep copies; all
// mutations refresh UpdatedAt and rewrite the full table atomically under
// the advisory lock.
type Manager struct {
	stateRoot string
	logger    *logging.Logger
	bus       *event.Bus
	lock      *fileLock

	mu       sync.RWMutex
	sessions map[string]*UnifiedSession
	order    []string
}

// NewManager creates a manager rooted at stateRoot, loading any existing
// session table.
func NewManager(stateRoot string, logger *logging.Logger, bus *event.Bus) (*Manager, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(stateRoot, 0o755); err != nil {
		return nil, errors.NewSessionError("failed to create state root", err)
	}

	m := &Manager{
		stateRoot: stateRoot,
		logger:    logger,
		bus:       bus,
		lock:      newFileLock(stateRoot),
		sessions:  make(map[string]*UnifiedSession),
	}

	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// load restores the catalog from the table file if one exists.
func (m *Manager) load() error {
	data, err := os.ReadFile(filepath.Join(m.stateRoot, tableFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.NewSessionError("failed to read session table", err)
	}

	var table sessionTable
	if err := json.Unmarshal(data, &table); err != nil {
		return errors.NewSessionError("failed to parse session table", errors.ErrSessionCorrupted).
			WithSeverity(errors.SeverityCritical)
	}

	for _, s := range table.Sessions {
		if s.BackendSessions == nil {
			s.BackendSessions = make(map[string]string)
		}
		m.sessions[s.ID] = s
		m.order = append(m.order, s.ID)
	}

	m.logger.Debug("session table loaded", "count", len(m.order))
	return nil
}

// persist rewrites the full table atomically. Callers must hold m.mu.
func (m *Manager) persist() error {
	table := sessionTable{Sessions: make([]*UnifiedSession, 0, len(m.order))}
	for _, id := range m.order {
		table.Sessions = append(table.Sessions, m.sessions[id])
	}

	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return errors.NewSessionError("failed to encode session table", err)
	}

	if err := m.lock.Lock(); err != nil {
		return errors.NewSessionError("failed to lock session table", err)
	}
	defer m.lock.Unlock()

	path := filepath.Join(m.stateRoot, tableFileName)
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return errors.NewSessionError("failed to write session table", err)
	}
	return nil
}

// Create registers a new session. Non-lite workflow levels get a state
// directory under the state root; failure to provision it fails the create.
func (m *Manager) Create(name, level string) (*UnifiedSession, error) {
	if level == "" {
		level = "lite"
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	s := &UnifiedSession{
		ID:              uuid.NewString(),
		Name:            name,
		BackendSessions: make(map[string]string),
		WorkflowBinding: &WorkflowBinding{Level: level},
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if level != "lite" {
		stateDir := filepath.Join(m.stateRoot, "sessions", s.ID)
		if err := os.MkdirAll(stateDir, 0o755); err != nil {
			return nil, errors.NewSessionError("failed to provision session state dir", err).
				WithSessionID(s.ID)
		}
		s.WorkflowBinding.StateDir = stateDir
	}

	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)

	if err := m.persist(); err != nil {
		delete(m.sessions, s.ID)
		m.order = m.order[:len(m.order)-1]
		return nil, err
	}

	m.logger.Info("session created", "session_id", s.ID, "name", name, "level", level)
	m.publish(event.NewSessionCreatedEvent(s.ID, name, level))
	return s.clone(), nil
}

// Get returns a session by ID.
func (m *Manager) Get(id string) (*UnifiedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}
	return s.clone(), nil
}

// List returns sessions in insertion order. Archived sessions are filtered
// out unless includeArchived is set.
func (m *Manager) List(includeArchived bool) []*UnifiedSession {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*UnifiedSession
	for _, id := range m.order {
		s := m.sessions[id]
		if s.Status == StatusArchived && !includeArchived {
			continue
		}
		out = append(out, s.clone())
	}
	return out
}

// Resume reactivates a session for further work. Paused sessions move back
// to active; archived sessions cannot be resumed.
func (m *Manager) Resume(id string) (*UnifiedSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}
	if s.Status == StatusArchived {
		return nil, errors.NewSessionError("cannot resume", errors.ErrSessionArchived).
			WithSessionID(id)
	}

	if s.Status == StatusPaused {
		if err := m.setStatus(s, StatusActive); err != nil {
			return nil, err
		}
	}
	return s.clone(), nil
}

// LinkBackendSession records a backend continuation token. Linking the
// same backend/token pair again is a no-op.
func (m *Manager) LinkBackendSession(id, backend, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}

	if existing, ok := s.BackendSessions[backend]; ok && existing == token {
		return nil
	}

	s.BackendSessions[backend] = token
	s.UpdatedAt = time.Now().UTC()
	return m.persist()
}

// AddTaskRecord appends to the session's task history. History is
// append-only; existing entries are never modified.
func (m *Manager) AddTaskRecord(id string, record TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	s.TaskHistory = append(s.TaskHistory, record)
	s.UpdatedAt = time.Now().UTC()
	return m.persist()
}

// UpdateStatus moves a session through the transition table. Illegal
// transitions return a typed validation error.
func (m *Manager) UpdateStatus(id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}
	return m.setStatus(s, status)
}

// setStatus applies a transition-checked status change and persists.
// Callers must hold m.mu.
func (m *Manager) setStatus(s *UnifiedSession, status string) error {
	if !CanTransition(s.Status, status) {
		return transitionError(s.Status, status)
	}

	previous := s.Status
	s.Status = status
	s.UpdatedAt = time.Now().UTC()

	if err := m.persist(); err != nil {
		s.Status = previous
		return err
	}

	m.logger.Info("session status changed",
		"session_id", s.ID, "from", previous, "to", status)
	m.publish(event.NewSessionStatusEvent(s.ID, previous, status))
	return nil
}

// transitionError builds the typed error for an illegal status move.
func transitionError(from, to string) error {
	return errors.NewValidationError(
		fmt.Sprintf("cannot move session from %s to %s", from, to)).
		WithField("status").
		WithValue(to).
		WithCause(errors.ErrInvalidTransition)
}

// Archive moves a session to the terminal archived status and relocates
// its state directory under archive/. The relocation runs first: if the
// move fails, the error surfaces and the session status is unchanged.
func (m *Manager) Archive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}
	if !CanTransition(s.Status, StatusArchived) {
		return transitionError(s.Status, StatusArchived)
	}

	oldDir := ""
	if s.WorkflowBinding != nil && s.WorkflowBinding.StateDir != "" {
		archiveDir := filepath.Join(m.stateRoot, "archive")
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return errors.NewSessionError("failed to prepare archive dir", err).
				WithSessionID(s.ID)
		}
		target := filepath.Join(archiveDir, s.ID)
		if err := os.Rename(s.WorkflowBinding.StateDir, target); err != nil {
			return errors.NewSessionError("failed to relocate state dir", err).
				WithSessionID(s.ID)
		}
		oldDir = s.WorkflowBinding.StateDir
		s.WorkflowBinding.StateDir = target
	}

	if err := m.setStatus(s, StatusArchived); err != nil {
		if oldDir != "" {
			if renameErr := os.Rename(s.WorkflowBinding.StateDir, oldDir); renameErr == nil {
				s.WorkflowBinding.StateDir = oldDir
			}
		}
		return err
	}

	m.publish(event.NewSessionArchivedEvent(s.ID))
	return nil
}

// Rename updates the session's display name.
func (m *Manager) Rename(id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}

	s.Name = name
	s.UpdatedAt = time.Now().UTC()
	return m.persist()
}

// planRecord is the on-disk shape of a saved plan.
type planRecord struct {
	SessionID string    `json:"session_id"`
	Plan      string    `json:"plan"`
	Timestamp time.Time `json:"timestamp"`
}

// SavePlan persists a planning-phase artifact. Each call writes a new
// timestamped file under plans/<sessionID>/.
func (m *Manager) SavePlan(id, plan string) error {
	m.mu.RLock()
	_, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return errors.NewSessionError("lookup failed", errors.ErrSessionNotFound).
			WithSessionID(id)
	}

	dir := filepath.Join(m.stateRoot, "plans", id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewSessionError("failed to create plan dir", err).WithSessionID(id)
	}

	record := planRecord{
		SessionID: id,
		Plan:      plan,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.NewSessionError("failed to encode plan", err).WithSessionID(id)
	}

	path := filepath.Join(dir, fmt.Sprintf("plan-%d.json", time.Now().UnixNano()))
	return atomicWriteFile(path, data, 0o644)
}

// StateRoot returns the manager's state root directory.
func (m *Manager) StateRoot() string { return m.stateRoot }

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// atomicWriteFile writes data to a temp file in the target directory and
// renames it into place so readers never observe a partial table.
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
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
