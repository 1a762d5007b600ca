package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/acc-projects/callcoach/internal/grading"
	"github.com/acc-projects/callcoach/internal/telephony"
)

// Hub fans out JSON events to connected websocket clients. Slow clients
// drop messages rather than blocking the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan []byte]struct{})}
}

func (h *Hub) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *Hub) BroadcastSessionStarted(sessionID string) {
	h.broadcastEvent(SessionStartedEvent{
		Event:     newEvent("session_started", time.Now().UTC()),
		SessionID: sessionID,
	})
}

func (h *Hub) BroadcastSessionEnded(sessionID string, duration time.Duration) {
	h.broadcastEvent(SessionEndedEvent{
		Event:     newEvent("session_ended", time.Now().UTC()),
		SessionID: sessionID,
		Duration:  duration.Seconds(),
	})
}

func (h *Hub) BroadcastLiveTranscript(sessionID string, seq int, text string) {
	h.broadcastEvent(LiveTranscriptEvent{
		Event:     newEvent("live_transcript", time.Now().UTC()),
		SessionID: sessionID,
		Seq:       seq,
		Text:      text,
	})
}

func (h *Hub) BroadcastGradeReady(result grading.Result) {
	h.broadcastEvent(GradeReadyEvent{
		Event:     newEvent("grade_ready", result.GradedAt),
		SessionID: result.SessionID,
		Scores:    result.Scores,
		Notes:     result.Notes,
	})
}

func (h *Hub) BroadcastCallEvent(event telephony.Event) {
	h.broadcastEvent(CallEventEvent{
		Event: newEvent("call_event", event.ReceivedAt),
		Call:  event,
	})
}

func (h *Hub) broadcastEvent(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("event marshal error: %v", err)
		return
	}
	h.Broadcast(payload)
}
