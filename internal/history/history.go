// Package history archives tracked sessions per actor.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MEKXH/intentpilot/internal/workflow"
)

const (
	// DefaultMaxEntries bounds the history of one actor.
	DefaultMaxEntries = 50
	keyPrefix         = "uip_intent_history_"
	observeTimeout    = 5 * time.Second
)

// Entry is one archived session snapshot.
type Entry struct {
	SessionID  string                     `json:"sessionId"`
	Intent     workflow.Intent            `json:"intent"`
	Compliance *workflow.ComplianceResult `json:"compliance,omitempty"`
	Decisions  []workflow.Decision        `json:"decisions"`
	Actions    []workflow.Action          `json:"actions"`
	Lifecycle  workflow.LifecycleState    `json:"lifecycleState"`
	Advisory   *workflow.Advisory         `json:"ragAdvisory,omitempty"`
	CreatedAt  time.Time                  `json:"createdAt"`
	ArchivedAt time.Time                  `json:"archivedAt"`
}

// FromSession snapshots a session.
func FromSession(s workflow.Session, at time.Time) Entry {
	s = s.Clone()
	created := s.CreatedAt
	if created.IsZero() {
		created = at
	}
	return Entry{
		SessionID:  s.ID,
		Intent:     s.Intent,
		Compliance: s.Compliance,
		Decisions:  s.Decisions,
		Actions:    s.Actions,
		Lifecycle:  s.Lifecycle,
		Advisory:   s.Advisory,
		CreatedAt:  created,
		ArchivedAt: at,
	}
}

// Store persists entry lists by actor key.
type Store interface {
	Load(ctx context.Context, key string) ([]Entry, error)
	Save(ctx context.Context, key string, entries []Entry) error
	Clear(ctx context.Context, key string) error
	Close() error
}

// Key returns the storage key of an actor.
func Key(actorID string) string {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = "anonymous"
	}
	return keyPrefix + actorID
}

// Archiver merges session snapshots into the bounded per-actor history.
type Archiver struct {
	store Store
	max   int
	now   func() time.Time

	mu        sync.Mutex
	completed map[string]bool
}

// NewArchiver creates an archiver over store keeping at most max entries per
// actor, never more than DefaultMaxEntries.
func NewArchiver(store Store, max int) *Archiver {
	if max <= 0 || max > DefaultMaxEntries {
		max = DefaultMaxEntries
	}
	return &Archiver{
		store:     store,
		max:       max,
		now:       time.Now,
		completed: make(map[string]bool),
	}
}

// Record merges one session into its actor's history: most recent first,
// one entry per intent id.
func (a *Archiver) Record(ctx context.Context, s workflow.Session) error {
	if strings.TrimSpace(s.Intent.ID) == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recordLocked(ctx, s)
}

func (a *Archiver) recordLocked(ctx context.Context, s workflow.Session) error {
	key := Key(s.Intent.ActorID)
	existing, err := a.store.Load(ctx, key)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	merged := Merge(existing, FromSession(s, a.now().UTC()), a.max)
	if err := a.store.Save(ctx, key, merged); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Merge places entry first, drops older entries of the same intent and
// truncates to max.
func Merge(existing []Entry, entry Entry, max int) []Entry {
	out := make([]Entry, 0, len(existing)+1)
	out = append(out, entry)
	for _, e := range existing {
		if e.Intent.ID == entry.Intent.ID {
			continue
		}
		out = append(out, e)
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

// Observe archives a session the first time it reaches COMPLETED. It is
// meant to be registered as a session observer.
func (a *Archiver) Observe(s workflow.Session) {
	if s.Lifecycle != workflow.StateCompleted || s.Intent.ID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.completed[s.ID] {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
	defer cancel()
	if err := a.recordLocked(ctx, s); err != nil {
		slog.Warn("archive completed session failed", "session_id", s.ID, "error", err)
		return
	}
	a.completed[s.ID] = true
	slog.Debug("archived completed session", "session_id", s.ID, "intent_id", s.Intent.ID)
}

// Flush archives every session. It returns when done or when ctx ends,
// whichever comes first.
func (a *Archiver) Flush(ctx context.Context, sessions []workflow.Session) error {
	done := make(chan error, 1)
	go func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		var firstErr error
		for _, s := range sessions {
			if s.Intent.ID == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				done <- err
				return
			}
			if err := a.recordLocked(ctx, s); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		done <- firstErr
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List returns the history of an actor.
func (a *Archiver) List(ctx context.Context, actorID string) ([]Entry, error) {
	entries, err := a.store.Load(ctx, Key(actorID))
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(entries) > a.max {
		entries = entries[:a.max]
	}
	return entries, nil
}

// Clear deletes the history of an actor.
func (a *Archiver) Clear(ctx context.Context, actorID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.store.Clear(ctx, Key(actorID))
}

// Close releases the store.
func (a *Archiver) Close() error {
	return a.store.Close()
}
