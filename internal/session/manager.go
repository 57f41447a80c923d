package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/claude/repcoach/internal/reps"
)

// DefaultTTL is how long a session may go without frames before it is reaped.
const DefaultTTL = 15 * time.Minute

// Manager is the registry of active sessions.
type Manager struct {
	opts Options
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewManager creates a registry whose sessions use opts. A non-positive ttl
// selects DefaultTTL.
func NewManager(opts Options, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		opts:     opts,
		ttl:      ttl,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Start registers a new session.
func (m *Manager) Start(userID int, w reps.Workout, now time.Time) *Session {
	return m.StartFrom(userID, w, "", now)
}

// StartFrom registers a new session recorded under source. An empty source
// keeps the registry default.
func (m *Manager) StartFrom(userID int, w reps.Workout, source string, now time.Time) *Session {
	opts := m.opts
	if source != "" {
		opts.Source = source
	}
	s := New(userID, w, now, opts)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns an active session.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Finish removes a session from the registry and returns it.
func (m *Manager) Finish(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	return s, ok
}

// Restore puts a finished or reaped session back into the registry, keeping
// its ID and state. It is a no-op when the ID is already registered.
func (m *Manager) Restore(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		m.sessions[s.ID] = s
	}
}

// Reap removes and returns sessions idle for longer than the TTL.
func (m *Manager) Reap(now time.Time) []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var reaped []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastSeen()) > m.ttl {
			delete(m.sessions, id)
			reaped = append(reaped, s)
		}
	}
	return reaped
}

// Active returns the number of registered sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
