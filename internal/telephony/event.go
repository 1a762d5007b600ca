package telephony

import "time"

// Kind identifies the canonical event type every provider payload shape
// is normalized into.
type Kind string

const (
	KindCallIncoming  Kind = "call-incoming"
	KindCallInitiated Kind = "call-initiated"
	KindCallAnswered  Kind = "call-answered"
	KindCallCompleted Kind = "call-completed"
	KindCallUpdated   Kind = "call-updated"
	KindMissed        Kind = "missed"
	KindAIReport      Kind = "ai-report"
	KindQueueEntered  Kind = "queue-entered"
	KindQueueExited   Kind = "queue-exited"
	KindUnknown       Kind = "unknown"
)

// AIReport is the post-call analysis block some providers attach to
// ai-report events.
type AIReport struct {
	Summary     string   `json:"summary"`
	Sentiment   string   `json:"sentiment"`
	ActionItems []string `json:"action_items"`
	Topics      []string `json:"topics"`
}

// Event is the canonical telephony event. Field names follow the flat
// provider schema; nested-shape payloads are translated into these
// fields by Normalize. Events are never mutated after normalization.
type Event struct {
	Kind           Kind      `json:"kind"`
	CallID         string    `json:"call_id"`
	SessionID      string    `json:"session_id,omitempty"`
	AgentNumber    string    `json:"agent_number,omitempty"`
	AgentName      string    `json:"agent_name,omitempty"`
	CustomerNumber string    `json:"customer_number,omitempty"`
	ContactName    string    `json:"contact_name,omitempty"`
	IsContact      bool      `json:"is_contact,omitempty"`
	Direction      string    `json:"direction,omitempty"`
	Status         string    `json:"status,omitempty"`
	DurationSec    int       `json:"duration,omitempty"`
	RecordingURL   string    `json:"recording_url,omitempty"`
	VoicemailURL   string    `json:"voicemail_url,omitempty"`
	QueueName      string    `json:"queue_name,omitempty"`
	AIReport       *AIReport `json:"ai_report,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}
