package ws

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// EventStream is a Subscriber that writes configuration events as
// server-sent events on a single HTTP response.
type EventStream struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	rc      *http.ResponseController
	log     *slog.Logger
	nextID  uint64
	closed  bool
}

// NewEventStream sends the stream headers and the client reconnect hint.
func NewEventStream(w http.ResponseWriter, retry time.Duration, logger *slog.Logger) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &EventStream{w: w, flusher: flusher, rc: http.NewResponseController(w), log: logger}
	err := s.write(func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "retry: %d\n\n", retry.Milliseconds())
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Send writes payload as a numbered "config" event.
func (s *EventStream) Send(payload []byte) error {
	return s.write(func(w io.Writer) error {
		s.nextID++
		_, err := fmt.Fprintf(w, "id: %d\nevent: config\ndata: %s\n\n", s.nextID, payload)
		return err
	})
}

// Heartbeat writes a comment line so idle proxies keep the stream open.
func (s *EventStream) Heartbeat() error {
	return s.write(func(w io.Writer) error {
		_, err := io.WriteString(w, ": ping\n\n")
		return err
	})
}

func (s *EventStream) write(frame func(io.Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return io.EOF
	}
	// A stalled reader must not hold up the hub.
	if err := s.rc.SetWriteDeadline(time.Now().Add(writeWait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.closed = true
		return err
	}
	if err := frame(s.w); err != nil {
		s.closed = true
		s.log.Warn("event stream write failed", "error", err)
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *EventStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
