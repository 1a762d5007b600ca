package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/acc-projects/callcoach/internal/telephony"
)

const webhookSecret = "shh-test-secret"

func postWebhook(t *testing.T, url string, payload []byte, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/webhook", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("build webhook request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("x-justcall-signature", signature)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("webhook request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestWebhook_ValidSignatureDispatches(t *testing.T) {
	dispatcher := telephony.NewDispatcher(webhookSecret)
	received := make(chan telephony.Event, 1)
	dispatcher.AddListener(func(e telephony.Event) { received <- e })

	srv := newTestServer(t, newStoreMock(), &controllerMock{}, dispatcher)

	payload := []byte(`{"event_type":"call.completed","call_id":"c-1","duration":42}`)
	resp := postWebhook(t, srv.URL, payload, telephony.Sign(payload, webhookSecret))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["status"] != "success" {
		t.Fatalf("expected success status, got %q", body["status"])
	}

	select {
	case event := <-received:
		if event.Kind != telephony.KindCallCompleted || event.CallID != "c-1" {
			t.Fatalf("unexpected event dispatched: %+v", event)
		}
	default:
		t.Fatal("expected event to reach listener")
	}
}

func TestWebhook_InvalidSignatureRejected(t *testing.T) {
	dispatcher := telephony.NewDispatcher(webhookSecret)
	dispatcher.AddListener(func(telephony.Event) { t.Fatal("listener must not run on bad signature") })

	srv := newTestServer(t, newStoreMock(), &controllerMock{}, dispatcher)

	payload := []byte(`{"event_type":"call.completed","call_id":"c-1"}`)
	resp := postWebhook(t, srv.URL, payload, "deadbeef")

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["error"] != "Invalid signature" {
		t.Fatalf("expected invalid signature error, got %q", body["error"])
	}
}

func TestWebhook_MissingSignatureRejected(t *testing.T) {
	dispatcher := telephony.NewDispatcher(webhookSecret)
	srv := newTestServer(t, newStoreMock(), &controllerMock{}, dispatcher)

	resp := postWebhook(t, srv.URL, []byte(`{"event_type":"call.completed","call_id":"c-1"}`), "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebhook_UnknownEventStillSucceeds(t *testing.T) {
	dispatcher := telephony.NewDispatcher(webhookSecret)
	dispatcher.AddListener(func(telephony.Event) { t.Fatal("listener must not run for unknown events") })

	srv := newTestServer(t, newStoreMock(), &controllerMock{}, dispatcher)

	payload := []byte(`{"event_type":"totally.new.thing","call_id":"c-2"}`)
	resp := postWebhook(t, srv.URL, payload, telephony.Sign(payload, webhookSecret))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for unknown event type, got %d", resp.StatusCode)
	}

	_, dropped := dispatcher.Stats()
	if dropped != 1 {
		t.Fatalf("expected one dropped event, got %d", dropped)
	}
}
