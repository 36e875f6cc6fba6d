// Package session manages per-user agent sessions. Each user gets their
// own agent instance; idle sessions are evicted on a sweep that runs at the
// start of every lookup, and the active model name is held here so an admin
// can switch models without restarting the service.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ragd-io/ragd/internal/agent"
)

// defaultIdleTimeout is how long a session may sit unused before eviction.
const defaultIdleTimeout = 30 * time.Minute

// Factory builds a fresh agent for a user against the named model.
type Factory func(ctx context.Context, modelName string) (*agent.Agent, error)

// entry is one live session.
type entry struct {
	agent    *agent.Agent
	model    string
	lastUsed time.Time
}

// Manager hands out per-user agents and evicts idle ones.
type Manager struct {
	// mu guards everything below.
	mu sync.Mutex

	// factory builds agents on demand.
	factory Factory

	// sessions maps user ID to its live session.
	sessions map[string]*entry

	// model is the active model name. Sessions built against an older
	// model are rebuilt lazily on their next use.
	model string

	// idleTimeout is the eviction threshold.
	idleTimeout time.Duration

	// now is the clock, swappable in tests.
	now func() time.Time
}

// NewManager constructs a Manager. idleTimeout zero means the 30-minute
// default.
func NewManager(factory Factory, model string, idleTimeout time.Duration) (*Manager, error) {
	if factory == nil {
		return nil, fmt.Errorf("session: factory must not be nil")
	}
	if model == "" {
		return nil, fmt.Errorf("session: model must not be empty")
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}
	return &Manager{
		factory:     factory,
		sessions:    make(map[string]*entry),
		model:       model,
		idleTimeout: idleTimeout,
		now:         time.Now,
	}, nil
}

// Get returns the user's agent, creating one if the user has no session or
// their session was built against a model that is no longer active. Idle
// sessions are swept on every call.
func (m *Manager) Get(ctx context.Context, userID string) (*agent.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()

	if e, ok := m.sessions[userID]; ok && e.model == m.model {
		e.lastUsed = m.now()
		return e.agent, nil
	}

	a, err := m.factory(ctx, m.model)
	if err != nil {
		return nil, fmt.Errorf("session: building agent for user %q: %w", userID, err)
	}
	m.sessions[userID] = &entry{agent: a, model: m.model, lastUsed: m.now()}
	return a, nil
}

// SetModel switches the active model. Live sessions are not torn down here;
// each is rebuilt on its next Get.
func (m *Manager) SetModel(model string) error {
	if model == "" {
		return fmt.Errorf("session: model must not be empty")
	}
	m.mu.Lock()
	m.model = model
	m.mu.Unlock()
	return nil
}

// Model returns the active model name.
func (m *Manager) Model() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Len returns the number of live sessions after a sweep.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked()
	return len(m.sessions)
}

// sweepLocked evicts sessions idle past the timeout. Caller holds mu.
func (m *Manager) sweepLocked() {
	cutoff := m.now().Add(-m.idleTimeout)
	for userID, e := range m.sessions {
		if e.lastUsed.Before(cutoff) {
			delete(m.sessions, userID)
		}
	}
}
