// Package session keeps the ordered registry of tracked intents and the
// active-session pointer.
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

// Observer is called with the new snapshot after every applied change.
type Observer func(workflow.Session)

type entry struct {
	op    sync.Mutex
	mu    sync.RWMutex
	state workflow.Session
	guard *workflow.FetchGuard
}

func (e *entry) snapshot() workflow.Session {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Manager manages sessions
type Manager struct {
	reducer workflow.Reducer
	now     func() time.Time

	mu        sync.RWMutex
	order     []string
	entries   map[string]*entry
	active    string
	observers []Observer
}

// NewManager creates a session manager that derives lifecycle with policy.
func NewManager(policy workflow.UnlockPolicy) *Manager {
	return &Manager{
		reducer: workflow.Reducer{Policy: policy},
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Policy returns the unlock policy sessions are derived with.
func (m *Manager) Policy() workflow.UnlockPolicy {
	return m.reducer.Policy
}

// Observe registers fn for every future change.
func (m *Manager) Observe(fn Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Create registers a new session for intent. The first session becomes active.
func (m *Manager) Create(intent workflow.Intent) workflow.Session {
	at := m.now().UTC()
	s := workflow.Session{
		ID:        uuid.NewString(),
		Intent:    intent,
		Decisions: []workflow.Decision{},
		Actions:   []workflow.Action{},
		CreatedAt: at,
		UpdatedAt: at,
	}
	s.Lifecycle = workflow.Derive(s, m.reducer.Policy)
	return m.add(s, workflow.NewFetchGuard())
}

// Restore registers a previously built session with its visited guard keys.
// An existing session with the same id is replaced.
func (m *Manager) Restore(s workflow.Session, visited []workflow.GuardKey) workflow.Session {
	if strings.TrimSpace(s.ID) == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now().UTC()
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	s = s.Clone()
	s.Lifecycle = workflow.Derive(s, m.reducer.Policy)
	return m.add(s, workflow.RestoreFetchGuard(visited))
}

func (m *Manager) add(s workflow.Session, guard *workflow.FetchGuard) workflow.Session {
	m.mu.Lock()
	if e, ok := m.entries[s.ID]; ok {
		e.mu.Lock()
		e.state = s
		e.guard = guard
		e.mu.Unlock()
	} else {
		m.entries[s.ID] = &entry{state: s, guard: guard}
		m.order = append(m.order, s.ID)
	}
	if m.active == "" {
		m.active = s.ID
	}
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	out := s.Clone()
	for _, fn := range observers {
		fn(out.Clone())
	}
	return out
}

// Get returns a snapshot of the session with id.
func (m *Manager) Get(id string) (workflow.Session, bool) {
	e, ok := m.entry(id)
	if !ok {
		return workflow.Session{}, false
	}
	return e.snapshot(), true
}

// List returns snapshots of every session in creation order.
func (m *Manager) List() []workflow.Session {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.order))
	for _, id := range m.order {
		entries = append(entries, m.entries[id])
	}
	m.mu.RUnlock()

	out := make([]workflow.Session, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

// Len returns the number of sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order)
}

// ActiveID returns the id of the active session, or "".
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Active returns a snapshot of the active session.
func (m *Manager) Active() (workflow.Session, bool) {
	return m.Get(m.ActiveID())
}

// Switch makes id the active session.
func (m *Manager) Switch(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return workflow.NotFound("switch session", "session %s not found", id)
	}
	m.active = id
	return nil
}

// SwitchIndex makes the session at the zero-based position active.
func (m *Manager) SwitchIndex(i int) (workflow.Session, error) {
	m.mu.Lock()
	if i < 0 || i >= len(m.order) {
		n := len(m.order)
		m.mu.Unlock()
		return workflow.Session{}, workflow.Validationf("switch session", "session %d out of range (have %d)", i+1, n)
	}
	m.active = m.order[i]
	e := m.entries[m.active]
	m.mu.Unlock()
	return e.snapshot(), nil
}

// Lock serializes mutations of one session. Reads never wait on it.
func (m *Manager) Lock(id string) (unlock func(), err error) {
	e, ok := m.entry(id)
	if !ok {
		return nil, workflow.NotFound("lock session", "session %s not found", id)
	}
	e.op.Lock()
	return e.op.Unlock, nil
}

// Guard returns the fetch guard owned by the session.
func (m *Manager) Guard(id string) (*workflow.FetchGuard, error) {
	e, ok := m.entry(id)
	if !ok {
		return nil, workflow.NotFound("session guard", "session %s not found", id)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.guard, nil
}

// Apply folds events into the session with id and returns the new snapshot.
func (m *Manager) Apply(id string, events ...workflow.Event) (workflow.Session, error) {
	e, ok := m.entry(id)
	if !ok {
		return workflow.Session{}, workflow.NotFound("apply session event", "session %s not found", id)
	}

	at := m.now().UTC()
	e.mu.Lock()
	next := e.state
	for _, ev := range events {
		if ev.At.IsZero() {
			ev.At = at
		}
		next = m.reducer.Apply(next, ev)
	}
	e.state = next
	e.mu.Unlock()

	m.mu.RLock()
	observers := append([]Observer(nil), m.observers...)
	m.mu.RUnlock()

	out := next.Clone()
	for _, fn := range observers {
		fn(out.Clone())
	}
	return out, nil
}

func (m *Manager) entry(id string) (*entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}
