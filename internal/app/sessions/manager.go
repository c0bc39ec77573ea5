// Package sessions manages the bounded registry of live session memories
// keyed by (user, session). Turns within one session are serialized; turns
// on different sessions run fully in parallel.
package sessions

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskchat/taskchat/internal/app/memory"
	"github.com/taskchat/taskchat/internal/domain"
)

const DefaultSessionCap = 1000

type sessionKey struct {
	user domain.UserID
	id   domain.SessionID
}

type entry struct {
	mem    *memory.Session
	turnMu sync.Mutex

	// lastActive is guarded by Manager.mu, not turnMu, so listing and
	// eviction never read session state an in-flight turn is writing.
	lastActive time.Time
}

// Manager is an explicit registry object with bounded capacity, injected
// into the orchestrator rather than accessed as global state so tests can
// construct isolated registries.
type Manager struct {
	mu       sync.Mutex
	cap      int
	memCfg   memory.Config
	now      func() time.Time
	sessions map[sessionKey]*entry
}

func NewManager(cap int, memCfg memory.Config) *Manager {
	if cap <= 0 {
		cap = DefaultSessionCap
	}
	return &Manager{
		cap:      cap,
		memCfg:   memCfg,
		now:      time.Now,
		sessions: make(map[sessionKey]*entry),
	}
}

// SetClock overrides the manager clock; used by tests.
func (m *Manager) SetClock(now func() time.Time) {
	m.now = now
}

// Create registers a new session with a generated id.
func (m *Manager) Create(user domain.UserID) *domain.Session {
	id := domain.SessionID(uuid.NewString())

	m.mu.Lock()
	defer m.mu.Unlock()
	return describeLocked(m.entryForLocked(user, id))
}

// Acquire returns the session memory for (user, id), creating it on first
// use, with that session's turn lock held. The caller must invoke release
// when the turn is done. Other sessions proceed in parallel.
func (m *Manager) Acquire(user domain.UserID, id domain.SessionID) (*memory.Session, func()) {
	m.mu.Lock()
	e := m.entryForLocked(user, id)
	e.lastActive = m.now()
	m.mu.Unlock()

	e.turnMu.Lock()
	return e.mem, e.turnMu.Unlock
}

// End destroys a session explicitly.
func (m *Manager) End(user domain.UserID, id domain.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{user: user, id: id}
	if _, found := m.sessions[key]; !found {
		return domain.ErrSessionNotFound
	}
	delete(m.sessions, key)
	return nil
}

// ListByUser returns the live sessions of one user, most recently active
// first.
func (m *Manager) ListByUser(user domain.UserID) []*domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.Session
	for key, e := range m.sessions {
		if key.user == user {
			out = append(out, describeLocked(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActiveAt.After(out[j].LastActiveAt)
	})
	return out
}

// History returns a copy of a session's retained conversation log.
func (m *Manager) History(user domain.UserID, id domain.SessionID) ([]domain.ConversationMessage, error) {
	m.mu.Lock()
	e, found := m.sessions[sessionKey{user: user, id: id}]
	m.mu.Unlock()
	if !found {
		return nil, domain.ErrSessionNotFound
	}

	e.turnMu.Lock()
	defer e.turnMu.Unlock()
	return e.mem.Messages(), nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// entryForLocked returns the entry for (user, id), creating it on first
// use. Callers hold m.mu.
func (m *Manager) entryForLocked(user domain.UserID, id domain.SessionID) *entry {
	key := sessionKey{user: user, id: id}
	if e, found := m.sessions[key]; found {
		return e
	}

	now := m.now()
	e := &entry{
		mem:        memory.NewSession(user, id, m.memCfg, now),
		lastActive: now,
	}
	m.sessions[key] = e
	m.evictLocked()
	return e
}

// evictLocked drops the least recently active sessions while over cap.
// Callers hold m.mu.
func (m *Manager) evictLocked() {
	for len(m.sessions) > m.cap {
		var (
			oldestKey sessionKey
			oldest    time.Time
			first     = true
		)
		for key, e := range m.sessions {
			if first || e.lastActive.Before(oldest) {
				oldestKey, oldest, first = key, e.lastActive, false
			}
		}
		delete(m.sessions, oldestKey)
	}
}

// describeLocked snapshots an entry. Callers hold m.mu; only immutable
// session fields and the manager-guarded timestamp are touched.
func describeLocked(e *entry) *domain.Session {
	return &domain.Session{
		ID:           e.mem.SessionID(),
		UserID:       e.mem.UserID(),
		CreatedAt:    e.mem.CreatedAt(),
		LastActiveAt: e.lastActive,
	}
}
