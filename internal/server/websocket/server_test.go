package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pushbridge/pushbridge/internal/domain/events"
	"github.com/pushbridge/pushbridge/pkg/stream"
)

func newTestServer(t *testing.T) (*Server, *stream.Subject[events.Event], *httptest.Server) {
	t.Helper()

	subject := stream.NewSubject[events.Event]()
	s := NewServer("127.0.0.1", 0, subject)

	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	t.Cleanup(ts.Close)

	return s, subject, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return frame
}

func frameEvent(t *testing.T, frame map[string]json.RawMessage) string {
	t.Helper()

	var eventType string
	if err := json.Unmarshal(frame["event"], &eventType); err != nil {
		t.Fatalf("frame has no event field: %v", err)
	}
	return eventType
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestServer_DeliversEventsToClient(t *testing.T) {
	_, subject, ts := newTestServer(t)
	conn := dial(t, ts)

	// Wait until the connection's subscription is live before emitting;
	// this stream has no replay.
	if !waitForCondition(t, 2*time.Second, func() bool { return subject.SubscriptionCount() == 1 }) {
		t.Fatal("subscription never registered")
	}

	subject.Emit(events.NewFileChangedEvent("a.go", events.FileChangeModified))

	frame := readFrame(t, conn)
	if got := frameEvent(t, frame); got != "file_changed" {
		t.Errorf("event = %q, want file_changed", got)
	}
}

func TestServer_MulticastsToAllClients(t *testing.T) {
	_, subject, ts := newTestServer(t)
	conn1 := dial(t, ts)
	conn2 := dial(t, ts)

	if !waitForCondition(t, 2*time.Second, func() bool { return subject.SubscriptionCount() == 2 }) {
		t.Fatal("subscriptions never registered")
	}

	subject.Emit(events.NewFileChangedEvent("b.go", events.FileChangeCreated))

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		frame := readFrame(t, conn)
		if got := frameEvent(t, frame); got != "file_changed" {
			t.Errorf("event = %q, want file_changed", got)
		}
	}
}

func TestServer_ProducerFailureSendsTerminalFrame(t *testing.T) {
	_, subject, ts := newTestServer(t)
	conn := dial(t, ts)

	if !waitForCondition(t, 2*time.Second, func() bool { return subject.SubscriptionCount() == 1 }) {
		t.Fatal("subscription never registered")
	}

	subject.Fail(errors.New("producer gone"))

	frame := readFrame(t, conn)
	if got := frameEvent(t, frame); got != "stream_failed" {
		t.Fatalf("event = %q, want stream_failed", got)
	}

	// The connection closes after the terminal frame.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after terminal frame")
	}
}

func TestServer_LateClientGetsTerminalImmediately(t *testing.T) {
	_, subject, ts := newTestServer(t)

	subject.Emit(events.NewFileChangedEvent("ignored.go", events.FileChangeModified))
	subject.Complete()

	conn := dial(t, ts)

	frame := readFrame(t, conn)
	if got := frameEvent(t, frame); got != "stream_completed" {
		t.Errorf("event = %q, want stream_completed", got)
	}
}

func TestServer_DisconnectCancelsSubscription(t *testing.T) {
	s, subject, ts := newTestServer(t)
	conn := dial(t, ts)

	if !waitForCondition(t, 2*time.Second, func() bool { return subject.SubscriptionCount() == 1 }) {
		t.Fatal("subscription never registered")
	}

	_ = conn.Close()

	if !waitForCondition(t, 2*time.Second, func() bool {
		return subject.SubscriptionCount() == 0 && s.ClientCount() == 0
	}) {
		t.Errorf("after disconnect: subscriptions=%d clients=%d, want 0/0",
			subject.SubscriptionCount(), s.ClientCount())
	}
}
