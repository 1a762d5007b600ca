package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/acc-projects/callcoach/internal/grading"
	"github.com/acc-projects/callcoach/internal/session"
	"github.com/acc-projects/callcoach/internal/storage"
)

type storeMock struct {
	calls  map[string]storage.Call
	grades map[string]grading.Result
	dates  []string
}

func newStoreMock() *storeMock {
	return &storeMock{calls: map[string]storage.Call{}, grades: map[string]grading.Result{}}
}

func (s *storeMock) GetCall(id string) (storage.Call, error) {
	call, ok := s.calls[id]
	if !ok {
		return storage.Call{}, sql.ErrNoRows
	}
	return call, nil
}

func (s *storeMock) GetCallsByDate(date string) ([]storage.Call, error) {
	var out []storage.Call
	for _, call := range s.calls {
		if call.StartedAt.UTC().Format("2006-01-02") == date {
			out = append(out, call)
		}
	}
	return out, nil
}

func (s *storeMock) GetDates() ([]string, error) { return s.dates, nil }

func (s *storeMock) GetGrade(sessionID string) (grading.Result, error) {
	grade, ok := s.grades[sessionID]
	if !ok {
		return grading.Result{}, sql.ErrNoRows
	}
	return grade, nil
}

type controllerMock struct {
	startID  string
	startErr error
	stopErr  error
	status   session.Status
	started  int
	stopped  int
}

func (c *controllerMock) Start(context.Context) (string, error) {
	c.started++
	return c.startID, c.startErr
}

func (c *controllerMock) Stop(context.Context) error {
	c.stopped++
	return c.stopErr
}

func (c *controllerMock) Status() session.Status { return c.status }

type sinkMock struct {
	err  error
	raws [][]byte
	sigs []string
}

func (s *sinkMock) HandleInbound(raw []byte, sig string) error {
	s.raws = append(s.raws, raw)
	s.sigs = append(s.sigs, sig)
	return s.err
}

func newTestServer(t *testing.T, store *storeMock, controller *controllerMock, sink WebhookSink) *httptest.Server {
	t.Helper()
	staticFS := fstest.MapFS{"index.html": &fstest.MapFile{Data: []byte("<html></html>")}}
	srv := httptest.NewServer(Handler(staticFS, NewHub(), store, controller, sink, ControlHooks{
		Warnings: func() []string { return []string{"test warning"} },
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestStartCall(t *testing.T) {
	controller := &controllerMock{startID: "sess-1"}
	srv := newTestServer(t, newStoreMock(), controller, &sinkMock{})

	resp, err := http.Post(srv.URL+"/api/calls/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["session_id"] != "sess-1" {
		t.Fatalf("expected session id sess-1, got %q", body["session_id"])
	}
	if controller.started != 1 {
		t.Fatalf("expected one Start call, got %d", controller.started)
	}
}

func TestStartCall_Conflict(t *testing.T) {
	controller := &controllerMock{startErr: session.ErrSessionActive}
	srv := newTestServer(t, newStoreMock(), controller, &sinkMock{})

	resp, err := http.Post(srv.URL+"/api/calls/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestStartCall_NotConfigured(t *testing.T) {
	controller := &controllerMock{startErr: session.ErrNotConfigured}
	srv := newTestServer(t, newStoreMock(), controller, &sinkMock{})

	resp, err := http.Post(srv.URL+"/api/calls/start", "application/json", nil)
	if err != nil {
		t.Fatalf("start request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStopCall(t *testing.T) {
	controller := &controllerMock{}
	srv := newTestServer(t, newStoreMock(), controller, &sinkMock{})

	resp, err := http.Post(srv.URL+"/api/calls/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if controller.stopped != 1 {
		t.Fatalf("expected one Stop call, got %d", controller.stopped)
	}
}

func TestStopCall_NoActiveSession(t *testing.T) {
	controller := &controllerMock{stopErr: session.ErrNoActiveSession}
	srv := newTestServer(t, newStoreMock(), controller, &sinkMock{})

	resp, err := http.Post(srv.URL+"/api/calls/stop", "application/json", nil)
	if err != nil {
		t.Fatalf("stop request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestGetCallWithGrade(t *testing.T) {
	store := newStoreMock()
	endedAt := time.Date(2026, 8, 28, 10, 5, 0, 0, time.UTC)
	store.calls["sess-1"] = storage.Call{
		ID:         "sess-1",
		StartedAt:  endedAt.Add(-5 * time.Minute),
		EndedAt:    &endedAt,
		Status:     storage.CallEnded,
		Transcript: "hello",
	}
	store.grades["sess-1"] = grading.Result{
		SessionID: "sess-1",
		Scores:    grading.Scores{Tone: 8, Overall: 7},
	}
	srv := newTestServer(t, store, &controllerMock{}, &sinkMock{})

	resp, err := http.Get(srv.URL + "/api/calls/sess-1")
	if err != nil {
		t.Fatalf("get call failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Call  storage.Call   `json:"call"`
		Grade grading.Result `json:"grade"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Call.Transcript != "hello" {
		t.Fatalf("expected transcript in response, got %q", body.Call.Transcript)
	}
	if body.Grade.Scores.Tone != 8 {
		t.Fatalf("expected grade attached, got %+v", body.Grade)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	srv := newTestServer(t, newStoreMock(), &controllerMock{}, &sinkMock{})

	resp, err := http.Get(srv.URL + "/api/calls/missing")
	if err != nil {
		t.Fatalf("get call failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestGetCall_InvalidID(t *testing.T) {
	srv := newTestServer(t, newStoreMock(), &controllerMock{}, &sinkMock{})

	resp, err := http.Get(srv.URL + "/api/calls/bad%2Fid")
	if err != nil {
		t.Fatalf("get call failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestListCallsByDate(t *testing.T) {
	store := newStoreMock()
	store.calls["a"] = storage.Call{ID: "a", StartedAt: time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)}
	store.calls["b"] = storage.Call{ID: "b", StartedAt: time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)}
	srv := newTestServer(t, store, &controllerMock{}, &sinkMock{})

	resp, err := http.Get(srv.URL + "/api/calls?date=2026-08-28")
	if err != nil {
		t.Fatalf("list calls failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var calls []storage.Call
	if err := json.NewDecoder(resp.Body).Decode(&calls); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(calls) != 1 || calls[0].ID != "a" {
		t.Fatalf("expected only the matching call, got %+v", calls)
	}
}

func TestStatusEndpoint(t *testing.T) {
	controller := &controllerMock{status: session.Status{
		State:     session.StateActive,
		SessionID: "sess-9",
		StartedAt: time.Now().UTC(),
	}}
	srv := newTestServer(t, newStoreMock(), controller, &sinkMock{})

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		State     string   `json:"state"`
		SessionID string   `json:"session_id"`
		Warnings  []string `json:"warnings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.State != "active" || body.SessionID != "sess-9" {
		t.Fatalf("expected active session in status, got %+v", body)
	}
	if len(body.Warnings) != 1 || body.Warnings[0] != "test warning" {
		t.Fatalf("expected warnings surfaced, got %v", body.Warnings)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, newStoreMock(), &controllerMock{}, &sinkMock{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSPAFallback(t *testing.T) {
	srv := newTestServer(t, newStoreMock(), &controllerMock{}, &sinkMock{})

	resp, err := http.Get(srv.URL + "/history")
	if err != nil {
		t.Fatalf("spa request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected SPA fallback 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Fatalf("expected html content type, got %q", ct)
	}
}

func TestAPIPathsNotServedBySPA(t *testing.T) {
	srv := newTestServer(t, newStoreMock(), &controllerMock{}, &sinkMock{})

	resp, err := http.Get(srv.URL + "/api/nope")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown api path, got %d", resp.StatusCode)
	}
}
