package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/multision/SupaConsole/internal/domain"
)

type recordingSubscriber struct {
	mu       sync.Mutex
	payloads [][]byte
	fail     bool
	closed   bool
	got      chan struct{}
}

func newRecordingSubscriber() *recordingSubscriber {
	return &recordingSubscriber{got: make(chan struct{}, 8)}
}

func (r *recordingSubscriber) Send(p []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broken pipe")
	}
	r.payloads = append(r.payloads, p)
	r.got <- struct{}{}
	return nil
}

func (r *recordingSubscriber) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordingSubscriber) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubPublishesToProjectSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx, testLogger())

	mine := newRecordingSubscriber()
	other := newRecordingSubscriber()
	hub.Register("p1", mine)
	hub.Register("p2", other)

	hub.PublishConfig(domain.ConfigEvent{ProjectID: "p1", Event: "config_updated", Keys: []string{"POSTGRES_PORT"}, At: time.Unix(0, 0).UTC()})

	select {
	case <-mine.got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var ev domain.ConfigEvent
	if err := json.Unmarshal(mine.payloads[0], &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.ProjectID != "p1" || len(ev.Keys) != 1 || ev.Keys[0] != "POSTGRES_PORT" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if hub.Subscribers("p2") != 1 {
		t.Fatalf("expected p2 subscriber to remain")
	}
	select {
	case <-other.got:
		t.Fatal("subscriber of another project received event")
	default:
	}
}

func TestHubDropsFailingSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(ctx, testLogger())

	broken := newRecordingSubscriber()
	broken.fail = true
	hub.Register("p1", broken)
	hub.Broadcast("p1", []byte(`{}`))

	if n := hub.Subscribers("p1"); n != 0 {
		t.Fatalf("expected failing subscriber removed, got %d", n)
	}
	if !broken.isClosed() {
		t.Fatal("expected failing subscriber closed")
	}
}

func TestHubStopClosesSubscribers(t *testing.T) {
	hub := NewHub(context.Background(), testLogger())
	sub := newRecordingSubscriber()
	hub.Register("p1", sub)
	hub.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for !sub.isClosed() {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not closed after stop")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Subscribers("p1") != 0 {
		t.Fatal("expected no subscribers after stop")
	}
	hub.Broadcast("p1", []byte(`{}`))
}

type flushRecorder struct {
	*httptest.ResponseRecorder
}

func (f flushRecorder) Flush() {}

func TestEventStreamFrames(t *testing.T) {
	rec := flushRecorder{httptest.NewRecorder()}
	stream, err := NewEventStream(rec, 3*time.Second, testLogger())
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	if err := stream.Send([]byte(`{"event":"config_updated"}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := stream.Send([]byte(`{}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := stream.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	want := "retry: 3000\n\n" +
		"id: 1\nevent: config\ndata: {\"event\":\"config_updated\"}\n\n" +
		"id: 2\nevent: config\ndata: {}\n\n" +
		": ping\n\n"
	if body := rec.Body.String(); body != want {
		t.Fatalf("unexpected body %q", body)
	}
	stream.Close()
	if err := stream.Send([]byte("x")); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after close, got %v", err)
	}
}

type plainWriter struct{ http.ResponseWriter }

func TestEventStreamRequiresFlusher(t *testing.T) {
	_, err := NewEventStream(plainWriter{httptest.NewRecorder()}, time.Second, testLogger())
	if !errors.Is(err, ErrStreamingUnsupported) {
		t.Fatalf("expected ErrStreamingUnsupported, got %v", err)
	}
}

type deadlineRecorder struct {
	*httptest.ResponseRecorder
	mu        sync.Mutex
	deadlines []time.Time
}

func (d *deadlineRecorder) SetWriteDeadline(t time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deadlines = append(d.deadlines, t)
	return nil
}

func TestEventStreamSetsWriteDeadlinePerFrame(t *testing.T) {
	rec := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder()}
	start := time.Now()
	stream, err := NewEventStream(rec, time.Second, testLogger())
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	if err := stream.Send([]byte(`{}`)); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := stream.Heartbeat(); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.deadlines) != 3 {
		t.Fatalf("expected a deadline per frame, got %d", len(rec.deadlines))
	}
	for _, d := range rec.deadlines {
		if d.Before(start.Add(writeWait)) {
			t.Fatalf("deadline %s earlier than write wait", d)
		}
	}
}

type failingDeadline struct {
	*httptest.ResponseRecorder
}

func (failingDeadline) SetWriteDeadline(time.Time) error { return errors.New("connection closed") }

func TestEventStreamClosesWhenDeadlineFails(t *testing.T) {
	_, err := NewEventStream(failingDeadline{httptest.NewRecorder()}, time.Second, testLogger())
	if err == nil {
		t.Fatal("expected error when the write deadline cannot be set")
	}
}
