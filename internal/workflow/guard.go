package workflow

import "sync"

// GuardKey identifies one action-generation transition of one intent.
type GuardKey struct {
	IntentID string         `json:"intentId"`
	State    LifecycleState `json:"state"`
}

// FetchGuard records which transitions already requested an action set.
// Each session owns its own guard.
type FetchGuard struct {
	mu      sync.Mutex
	visited map[GuardKey]struct{}
}

// NewFetchGuard creates an empty guard.
func NewFetchGuard() *FetchGuard {
	return &FetchGuard{visited: make(map[GuardKey]struct{})}
}

// RestoreFetchGuard rebuilds a guard from a previous Snapshot.
func RestoreFetchGuard(keys []GuardKey) *FetchGuard {
	g := NewFetchGuard()
	for _, k := range keys {
		g.visited[k] = struct{}{}
	}
	return g
}

// TryMark marks key as visited and reports whether it was unvisited.
func (g *FetchGuard) TryMark(key GuardKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.visited[key]; ok {
		return false
	}
	g.visited[key] = struct{}{}
	return true
}

// Mark records key as visited.
func (g *FetchGuard) Mark(key GuardKey) {
	g.mu.Lock()
	g.visited[key] = struct{}{}
	g.mu.Unlock()
}

// Release forgets key after a request that produced nothing.
func (g *FetchGuard) Release(key GuardKey) {
	g.mu.Lock()
	delete(g.visited, key)
	g.mu.Unlock()
}

// Visited reports whether key was already requested.
func (g *FetchGuard) Visited(key GuardKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.visited[key]
	return ok
}

// Snapshot returns the visited keys.
func (g *FetchGuard) Snapshot() []GuardKey {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GuardKey, 0, len(g.visited))
	for k := range g.visited {
		out = append(out, k)
	}
	return out
}

// PendingActionFetch reports whether the session needs an action set and
// returns the guard key for that transition. The caller still has to claim
// the key with TryMark.
func PendingActionFetch(s Session, policy UnlockPolicy) (GuardKey, bool) {
	state := Derive(s, policy)
	if state != StateDecisionsMade && state != StateActionsInProgress {
		return GuardKey{}, false
	}
	if len(s.Actions) > 0 {
		return GuardKey{}, false
	}
	return GuardKey{IntentID: s.Intent.ID, State: state}, true
}
