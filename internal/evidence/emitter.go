package evidence

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 5 * time.Second
)

// ErrEmitterClosed is returned when emitting after Close.
var ErrEmitterClosed = errors.New("evidence emitter closed")

// Options configures an Emitter.
type Options struct {
	RatePerSecond float64
	Burst         int
	QueueSize     int
	SendTimeout   time.Duration
}

// Emitter delivers evidence asynchronously to every sink. Emitting never
// blocks the caller; a full queue drops the record. Sink failures are logged
// and never surface.
type Emitter struct {
	sinks   []Sink
	limiter *rate.Limiter
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	closed  bool
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int64
}

// NewEmitter starts an emitter that fans out to sinks.
func NewEmitter(opts Options, sinks ...Sink) *Emitter {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	e := &Emitter{
		sinks:   sinks,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		now:     time.Now,
		queue:   make(chan Event, size),
		done:    make(chan struct{}),
	}
	go e.run()
	return e
}

// Emit queues one record. It is safe on a nil emitter.
func (e *Emitter) Emit(ev Event) {
	if e == nil {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.queue <- ev.normalized(e.now().UTC()):
	default:
		e.dropped.Add(1)
		slog.Warn("evidence queue full, dropping event", "event_type", ev.EventType, "intent_id", ev.IntentID)
	}
}

// Close stops accepting records and waits until the queue drains or ctx ends.
func (e *Emitter) Close(ctx context.Context) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEmitterClosed
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns how many records were discarded on a full queue.
func (e *Emitter) Dropped() int64 {
	if e == nil {
		return 0
	}
	return e.dropped.Load()
}

func (e *Emitter) run() {
	defer close(e.done)
	for ev := range e.queue {
		if err := e.limiter.Wait(context.Background()); err != nil {
			slog.Warn("evidence rate limiter failed", "error", err)
		}
		for _, sink := range e.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
			if err := sink.SendEvidence(ctx, ev); err != nil {
				slog.Warn("evidence delivery failed", "event_type", ev.EventType, "intent_id", ev.IntentID, "error", err)
			}
			cancel()
		}
	}
}
