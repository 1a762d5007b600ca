package server

import (
	"time"

	"github.com/acc-projects/callcoach/internal/grading"
	"github.com/acc-projects/callcoach/internal/telephony"
)

const EventVersion = 1

type Event struct {
	Type      string `json:"type"`
	Version   int    `json:"version"`
	Timestamp string `json:"timestamp"`
}

type SessionStartedEvent struct {
	Event
	SessionID string `json:"session_id"`
}

type SessionEndedEvent struct {
	Event
	SessionID string  `json:"session_id"`
	Duration  float64 `json:"duration"`
}

type LiveTranscriptEvent struct {
	Event
	SessionID string `json:"session_id"`
	Seq       int    `json:"seq"`
	Text      string `json:"text"`
}

type GradeReadyEvent struct {
	Event
	SessionID string         `json:"session_id"`
	Scores    grading.Scores `json:"scores"`
	Notes     string         `json:"notes"`
}

type CallEventEvent struct {
	Event
	Call telephony.Event `json:"call"`
}

type ConnectionEvent struct {
	Event
	Connected bool `json:"connected"`
}

func newEvent(eventType string, now time.Time) Event {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	return Event{
		Type:      eventType,
		Version:   EventVersion,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
