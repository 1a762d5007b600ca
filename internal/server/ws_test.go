package server

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"

	"github.com/acc-projects/callcoach/internal/grading"
	"github.com/acc-projects/callcoach/internal/telephony"
)

func testStaticFS() fstest.MapFS {
	return fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<html></html>")}}
}

func newHubTestServer(t *testing.T, hub *Hub, staticFS fstest.MapFS) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(Handler(staticFS, hub, newStoreMock(), &controllerMock{}, &sinkMock{}, ControlHooks{}))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, httpURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, into any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ws read failed: %v", err)
	}
	if err := json.Unmarshal(msg, into); err != nil {
		t.Fatalf("decode ws event: %v", err)
	}
}

func TestWS_ConnectionEventThenBroadcasts(t *testing.T) {
	hub := NewHub()
	staticFS := testStaticFS()
	srv := newHubTestServer(t, hub, staticFS)

	conn := dialWS(t, srv.URL)

	var connected ConnectionEvent
	readEvent(t, conn, &connected)
	if connected.Type != "connection" || !connected.Connected {
		t.Fatalf("expected connection event first, got %+v", connected)
	}
	if connected.Version != EventVersion {
		t.Fatalf("expected event version %d, got %d", EventVersion, connected.Version)
	}

	hub.BroadcastSessionStarted("sess-1")

	var started SessionStartedEvent
	readEvent(t, conn, &started)
	if started.Type != "session_started" || started.SessionID != "sess-1" {
		t.Fatalf("expected session_started for sess-1, got %+v", started)
	}
}

func TestWS_LiveTranscriptAndGradeEvents(t *testing.T) {
	hub := NewHub()
	srv := newHubTestServer(t, hub, testStaticFS())

	conn := dialWS(t, srv.URL)

	var connected ConnectionEvent
	readEvent(t, conn, &connected)

	hub.BroadcastLiveTranscript("sess-1", 3, "hello there")

	var live LiveTranscriptEvent
	readEvent(t, conn, &live)
	if live.Type != "live_transcript" || live.Seq != 3 || live.Text != "hello there" {
		t.Fatalf("unexpected live transcript event: %+v", live)
	}

	hub.BroadcastGradeReady(grading.Result{
		SessionID: "sess-1",
		Scores:    grading.Scores{Tone: 8, Overall: 7},
		Notes:     "solid call",
		GradedAt:  time.Now().UTC(),
	})

	var grade GradeReadyEvent
	readEvent(t, conn, &grade)
	if grade.Type != "grade_ready" || grade.Scores.Overall != 7 {
		t.Fatalf("unexpected grade event: %+v", grade)
	}
}

func TestWS_CallEventBroadcast(t *testing.T) {
	hub := NewHub()
	srv := newHubTestServer(t, hub, testStaticFS())

	conn := dialWS(t, srv.URL)

	var connected ConnectionEvent
	readEvent(t, conn, &connected)

	hub.BroadcastCallEvent(telephony.Event{
		Kind:       telephony.KindCallIncoming,
		CallID:     "c-7",
		ReceivedAt: time.Now().UTC(),
	})

	var callEvent CallEventEvent
	readEvent(t, conn, &callEvent)
	if callEvent.Type != "call_event" || callEvent.Call.CallID != "c-7" {
		t.Fatalf("unexpected call event: %+v", callEvent)
	}
	if callEvent.Call.Kind != telephony.KindCallIncoming {
		t.Fatalf("expected call-incoming kind, got %s", callEvent.Call.Kind)
	}
}

func TestHub_SlowClientDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()

	// Never drained; fills after 64 buffered messages.
	slow := hub.Subscribe()
	defer hub.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Broadcast([]byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
}
