package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MEKXH/intentpilot/internal/bus"
)

// StreamSource reads transcripts from the speech service websocket. Audio
// goes up as binary frames and each recognized utterance comes back as one
// text frame.
type StreamSource struct {
	conn   *websocket.Conn
	events chan bus.Event
	stop   chan struct{}
	done   chan struct{}

	writeMu sync.Mutex
	once    sync.Once
}

// DialStream connects to the speech service at url.
func DialStream(ctx context.Context, url string) (*StreamSource, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connect speech service %s: %w", url, err)
	}
	s := &StreamSource{
		conn:   conn,
		events: make(chan bus.Event, 16),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.listen()
	slog.Info("speech service connected", "url", url)
	return s, nil
}

// Events returns the transcript stream.
func (s *StreamSource) Events() <-chan bus.Event {
	return s.events
}

// SendAudio streams one chunk of audio to the recognizer.
func (s *StreamSource) SendAudio(chunk []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

// Close ends the stream and waits for the reader to stop.
func (s *StreamSource) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	<-s.done
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *StreamSource) listen() {
	defer close(s.done)
	defer close(s.events)
	for {
		kind, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				slog.Warn("speech service read failed", "error", err)
				s.publish(bus.Failure(err))
			}
			s.publish(bus.End())
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		ev := bus.Transcript(string(raw))
		if ev.Text == "" {
			continue
		}
		if !s.publish(ev) {
			return
		}
	}
}

func (s *StreamSource) publish(ev bus.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stop:
		return false
	}
}

// ClipSource transcribes recorded clips one after another and ends when they
// are exhausted.
type ClipSource struct {
	*bus.ChannelSource
	cancel context.CancelFunc
	done   chan struct{}
}

// NewClipSource starts transcribing clips in the background.
func NewClipSource(ctx context.Context, t Transcriber, clips ...Clip) *ClipSource {
	ctx, cancel := context.WithCancel(ctx)
	s := &ClipSource{
		ChannelSource: bus.NewChannelSource(len(clips) + 1),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for _, clip := range clips {
			text, err := t.Transcribe(ctx, clip)
			ev := bus.Transcript(text)
			if err != nil {
				ev = bus.Failure(err)
			}
			if s.Publish(ctx, ev) != nil {
				return
			}
		}
		_ = s.Publish(ctx, bus.End())
	}()
	return s
}

// Close stops transcription and closes the event stream.
func (s *ClipSource) Close() error {
	s.cancel()
	<-s.done
	return s.ChannelSource.Close()
}
