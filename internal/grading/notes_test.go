package grading

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func longTranscript() string {
	return strings.Repeat("thank you for calling today how can I help ", 5)
}

func coachFor(t *testing.T, url string) *Coach {
	t.Helper()
	config := openai.DefaultConfig("sk-test")
	config.BaseURL = url
	c := NewCoachWithConfig(config, "gpt-4o-mini")
	c.sleep = func(time.Duration) {}
	return c
}

func chatResponse(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"role": "assistant", "content": content}},
		},
	}
}

func TestCoachNotes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatResponse("  Slow down on pricing.  "))
	}))
	defer srv.Close()

	c := coachFor(t, srv.URL)
	notes, err := c.Notes(context.Background(), Result{Transcript: longTranscript()})
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if notes != "Slow down on pricing." {
		t.Fatalf("expected trimmed notes, got %q", notes)
	}
}

func TestCoachNotes_ShortTranscriptSkipsAPI(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(chatResponse("x"))
	}))
	defer srv.Close()

	c := coachFor(t, srv.URL)
	notes, err := c.Notes(context.Background(), Result{Transcript: "too short"})
	if err != nil {
		t.Fatalf("Notes failed: %v", err)
	}
	if notes != "" || calls.Load() != 0 {
		t.Fatalf("expected no API call for short transcript, got notes %q calls %d", notes, calls.Load())
	}
}

func TestCoachNotes_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(chatResponse("Better."))
	}))
	defer srv.Close()

	c := coachFor(t, srv.URL)
	notes, err := c.Notes(context.Background(), Result{Transcript: longTranscript()})
	if err != nil {
		t.Fatalf("Notes failed after retries: %v", err)
	}
	if notes != "Better." || calls.Load() != 3 {
		t.Fatalf("expected success on third attempt, got %q after %d calls", notes, calls.Load())
	}
}

func TestCoachNotes_ExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := coachFor(t, srv.URL)
	if _, err := c.Notes(context.Background(), Result{Transcript: longTranscript()}); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}
