package game

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/MJE43/photohunt/internal/engine"
)

var (
	ErrSessionNotFound = errors.New("game: session not found")
	ErrTooManySessions = errors.New("game: too many sessions")
)

// Manager owns the live sessions of a server, keyed by id.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	cfg      engine.Settings
	deps     Deps
	max      int
}

// NewManager builds sessions from a shared configuration. max <= 0 means
// no limit.
func NewManager(cfg engine.Settings, deps Deps, max int) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		cfg:      cfg,
		deps:     deps,
		max:      max,
	}
}

// Create registers a new idle session. emitter, when non-nil, replaces the
// shared emitter for this session.
func (m *Manager) Create(emitter Emitter) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, ErrTooManySessions
	}
	deps := m.deps
	if emitter != nil {
		deps.Emitter = emitter
	}
	s := NewSession(uuid.NewString(), m.cfg, deps)
	m.sessions[s.ID()] = s
	return s, nil
}

// Start creates a session and starts its first game.
func (m *Manager) Start(ctx context.Context, emitter Emitter) (*Session, error) {
	s, err := m.Create(emitter)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		m.Remove(s.ID())
		return nil, err
	}
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// List returns the ids of live sessions in sorted order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
