// Package session maps browser sessions to live wizard controllers.
//
// One controller exists per session; it owns the draft exclusively for
// as long as the session is active. Sessions that stop being edited are
// swept after a TTL, which is the only way an abandoned draft leaves
// memory. Anything worth keeping was already autosaved.
package session

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evermore-app/evermore/internal/model"
	"github.com/evermore-app/evermore/internal/wizard"
)

var sessionLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	sessionLogger = l
}

const sweepInterval = time.Minute

// Factory builds a fresh controller for an owner. Injected so tests can
// substitute stores.
type Factory func(owner model.UserID) (*wizard.Controller, error)

type entry struct {
	controller *wizard.Controller
	owner      model.UserID
	lastSeen   time.Time
}

type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	factory  Factory
}

func NewManager(ttl time.Duration, factory Factory) *Manager {
	return &Manager{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		factory:  factory,
	}
}

// GetOrCreate returns the session's controller, building one on first
// use. A session presenting a different owner than the one on record
// gets a fresh controller; the old one is discarded.
func (m *Manager) GetOrCreate(sessionID string, owner model.UserID) (*wizard.Controller, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[sessionID]; ok {
		if e.owner == owner {
			e.lastSeen = time.Now()
			return e.controller, nil
		}
		sessionLogger.Warn().Str("session", sessionID).Msg("Session changed owner, discarding controller")
		e.controller.ExitDiscard()
		delete(m.sessions, sessionID)
	}

	controller, err := m.factory(owner)
	if err != nil {
		return nil, err
	}
	m.sessions[sessionID] = &entry{
		controller: controller,
		owner:      owner,
		lastSeen:   time.Now(),
	}
	sessionLogger.Debug().Str("session", sessionID).Str("owner", string(owner)).Msg("Wizard session started")
	return controller, nil
}

// Get returns the live controller without creating one.
func (m *Manager) Get(sessionID string) (*wizard.Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.controller, true
}

// Delete tears the session down immediately, e.g. after an explicit
// exit or publish.
func (m *Manager) Delete(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[sessionID]; ok {
		e.controller.ExitDiscard()
		delete(m.sessions, sessionID)
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts idle sessions forever. Call it in a goroutine at
// startup.
func (m *Manager) Sweep() {
	for {
		time.Sleep(sweepInterval)
		m.evictStale(time.Now())
	}
}

func (m *Manager) evictStale(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, e := range m.sessions {
		if now.Sub(e.lastSeen) < m.ttl {
			continue
		}
		e.controller.ExitDiscard()
		delete(m.sessions, id)
		sessionLogger.Info().Str("session", id).Str("owner", string(e.owner)).Msg("Swept idle wizard session")
	}
}
