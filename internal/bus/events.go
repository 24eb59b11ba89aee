package bus

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type requestIDContextKey struct{}

// EventType is the kind of a speech recognition event.
type EventType string

const (
	EventTranscript EventType = "transcript"
	EventError      EventType = "error"
	EventEnd        EventType = "end"
)

// Event is one message emitted by a speech source.
type Event struct {
	Type      EventType
	Text      string
	Err       error
	Timestamp time.Time
	RequestID string
}

// Transcript builds a transcript event.
func Transcript(text string) Event {
	return Event{Type: EventTranscript, Text: strings.TrimSpace(text), Timestamp: time.Now(), RequestID: NewRequestID()}
}

// Failure builds an error event.
func Failure(err error) Event {
	return Event{Type: EventError, Err: err, Timestamp: time.Now()}
}

// End builds an end-of-recognition event.
func End() Event {
	return Event{Type: EventEnd, Timestamp: time.Now()}
}

// Source yields speech events until it is closed or recognition ends.
type Source interface {
	Events() <-chan Event
	Close() error
}

// ErrSourceClosed is returned when publishing to a closed source.
var ErrSourceClosed = errors.New("speech source closed")

// ChannelSource is an in-memory Source fed by Publish. Typed input and tests
// use it in place of a recognizer.
type ChannelSource struct {
	events chan Event
	mu     sync.RWMutex
	closed bool
}

// NewChannelSource creates a source with the given buffer size.
func NewChannelSource(buffer int) *ChannelSource {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSource{events: make(chan Event, buffer)}
}

// Events returns the event stream.
func (s *ChannelSource) Events() <-chan Event {
	return s.events
}

// Publish sends one event, blocking until it is buffered or ctx is done.
func (s *ChannelSource) Publish(ctx context.Context, ev Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSourceClosed
	}
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the stream. It is safe to call more than once.
func (s *ChannelSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}

// NewRequestID creates a request id for tracing.
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID adds a request id to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext reads request id from context.
func RequestIDFromContext(ctx context.Context) string {
	v := ctx.Value(requestIDContextKey{})
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
