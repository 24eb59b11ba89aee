package approval

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultTTL = 30 * time.Second

// ErrNoPending is returned when there is nothing to confirm or cancel.
var ErrNoPending = errors.New("no pending confirmation")

// Timer is the handle of a scheduled expiry.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Gate holds at most one pending confirmation. Opening a new request
// replaces the old one and its timer; only Approve, Reject or the expiry
// resolve a request.
type Gate struct {
	defaultTTL time.Duration
	now        func() time.Time
	afterFunc  AfterFunc
	onExpire   func(Request)

	mu      sync.Mutex
	gen     uint64
	pending *Request
	timer   Timer
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithAfterFunc overrides the timer scheduler.
func WithAfterFunc(fn AfterFunc) Option {
	return func(g *Gate) { g.afterFunc = fn }
}

// NewGate creates a gate whose requests expire after ttl. onExpire runs on
// the timer goroutine for requests that time out and may be nil.
func NewGate(ttl time.Duration, onExpire func(Request), opts ...Option) *Gate {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	g := &Gate{
		defaultTTL: ttl,
		now:        time.Now,
		afterFunc:  realAfterFunc,
		onExpire:   onExpire,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Open starts a new pending request and returns it together with the request
// it replaced, if any.
func (g *Gate) Open(input CreateInput) (Request, *Request, error) {
	kind := strings.TrimSpace(input.Kind)
	if kind == "" {
		return Request{}, nil, fmt.Errorf("kind is required")
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = g.defaultTTL
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	var replaced *Request
	if g.pending != nil {
		old := *g.pending
		old.Status = StatusReplaced
		old.DecidedAt = g.now().UTC()
		replaced = &old
	}
	g.stopLocked()

	now := g.now().UTC()
	g.gen++
	req := Request{
		Generation:  g.gen,
		Kind:        kind,
		Prompt:      strings.TrimSpace(input.Prompt),
		Params:      input.Params,
		Status:      StatusPending,
		RequestedAt: now,
		ExpiresAt:   now.Add(ttl),
	}
	g.pending = &req

	gen := g.gen
	g.timer = g.afterFunc(ttl, func() { g.expire(gen) })
	return req, replaced, nil
}

// Pending returns the live request.
func (g *Gate) Pending() (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return Request{}, false
	}
	return *g.pending, true
}

// Approve resolves the live request as approved.
func (g *Gate) Approve() (Request, error) {
	return g.decide(StatusApproved)
}

// Reject resolves the live request as rejected.
func (g *Gate) Reject() (Request, error) {
	return g.decide(StatusRejected)
}

// Close stops the timer and drops any pending request.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
	g.pending = nil
	g.gen++
}

func (g *Gate) decide(status RequestStatus) (Request, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil {
		return Request{}, ErrNoPending
	}
	req := *g.pending
	req.Status = status
	req.DecidedAt = g.now().UTC()
	g.pending = nil
	g.stopLocked()
	return req, nil
}

func (g *Gate) expire(gen uint64) {
	g.mu.Lock()
	if g.pending == nil || g.pending.Generation != gen {
		g.mu.Unlock()
		return
	}
	req := *g.pending
	req.Status = StatusExpired
	req.DecidedAt = g.now().UTC()
	g.pending = nil
	g.timer = nil
	onExpire := g.onExpire
	g.mu.Unlock()

	if onExpire != nil {
		onExpire(req)
	}
}

func (g *Gate) stopLocked() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
