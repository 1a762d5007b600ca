package telephony

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownEvent reports an unrecognized event type string. Provider
// schemas evolve, so callers treat this as a no-op, not a failure.
type ErrUnknownEvent struct {
	Type string
}

func (e ErrUnknownEvent) Error() string {
	return fmt.Sprintf("unknown telephony event type %q", e.Type)
}

// flatPayload is the provider's documented webhook shape.
type flatPayload struct {
	EventType      string    `json:"event_type"`
	CallID         string    `json:"call_id"`
	SessionID      string    `json:"session_id"`
	AgentNumber    string    `json:"agent_number"`
	CustomerNumber string    `json:"customer_number"`
	Direction      string    `json:"direction"`
	Status         string    `json:"status"`
	Duration       int       `json:"duration"`
	RecordingURL   string    `json:"recording_url"`
	VoicemailURL   string    `json:"voicemail_url"`
	QueueName      string    `json:"queue_name"`
	AIReport       *AIReport `json:"ai_report"`
}

// nestedPayload is the second shape observed in the wild: an envelope
// with a snake_case data block and differently-named fields.
type nestedPayload struct {
	Type string `json:"type"`
	Data struct {
		CallSID        string    `json:"call_sid"`
		CallID         string    `json:"call_id"`
		DialerNumber   string    `json:"justcall_number"`
		ContactNumber  string    `json:"contact_number"`
		ContactName    string    `json:"contact_name"`
		IsContact      looseBool `json:"is_contact"`
		AgentName      string    `json:"agent_name"`
		Direction      looseInt  `json:"direction"`
		CallStatus     string    `json:"call_status"`
		CallDuration   looseInt  `json:"call_duration_sec"`
		RecordingMP3   string    `json:"recording_mp3"`
		QueueName      string    `json:"queue_name"`
		MissedCallType string    `json:"missed_call_type"`
	} `json:"data"`
}

// looseBool accepts true/false, 1/0, and "1"/"0"/"true"/"false".
type looseBool bool

func (b *looseBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	switch strings.ToLower(s) {
	case "1", "true":
		*b = true
	default:
		*b = false
	}
	return nil
}

// looseInt accepts both JSON numbers and numeric strings.
type looseInt int

func (n *looseInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		*n = 0
		return nil
	}
	*n = looseInt(v)
	return nil
}

var flatKinds = map[string]Kind{
	"call.incoming":  KindCallIncoming,
	"call.initiated": KindCallInitiated,
	"call.answered":  KindCallAnswered,
	"call.completed": KindCallCompleted,
	"call.updated":   KindCallUpdated,
	"call.missed":    KindMissed,
	"call.ai_report": KindAIReport,
	"queue.entered":  KindQueueEntered,
	"queue.exited":   KindQueueExited,
}

var nestedKinds = map[string]Kind{
	"call":          KindCallCompleted,
	"call_updated":  KindCallUpdated,
	"call_incoming": KindCallIncoming,
}

// Normalize maps a raw provider payload onto the canonical Event. The
// two known shapes are tried in fixed priority order: the nested
// envelope first (its "type"+"data" keys make it unambiguous), then the
// flat shape. An unrecognized type yields ErrUnknownEvent.
func Normalize(raw []byte) (Event, error) {
	if shape, rawType, ok := parseNested(raw); ok {
		if shape.Kind == KindUnknown {
			return Event{}, ErrUnknownEvent{Type: rawType}
		}
		return shape, nil
	}

	var flat flatPayload
	if err := json.Unmarshal(raw, &flat); err != nil {
		return Event{}, fmt.Errorf("parse webhook payload: %w", err)
	}

	kind, ok := flatKinds[flat.EventType]
	if !ok {
		return Event{}, ErrUnknownEvent{Type: flat.EventType}
	}

	return Event{
		Kind:           kind,
		CallID:         flat.CallID,
		SessionID:      flat.SessionID,
		AgentNumber:    flat.AgentNumber,
		CustomerNumber: flat.CustomerNumber,
		Direction:      flat.Direction,
		Status:         flat.Status,
		DurationSec:    flat.Duration,
		RecordingURL:   flat.RecordingURL,
		VoicemailURL:   flat.VoicemailURL,
		QueueName:      flat.QueueName,
		AIReport:       flat.AIReport,
		ReceivedAt:     time.Now().UTC(),
	}, nil
}

func parseNested(raw []byte) (Event, string, bool) {
	// Cheap structural probe before committing to the nested schema.
	if !bytes.Contains(raw, []byte(`"data"`)) {
		return Event{}, "", false
	}

	var nested nestedPayload
	if err := json.Unmarshal(raw, &nested); err != nil {
		return Event{}, "", false
	}
	if nested.Type == "" {
		return Event{}, "", false
	}

	kind, ok := nestedKinds[nested.Type]
	if !ok {
		kind = KindUnknown
	}

	callID := nested.Data.CallSID
	if callID == "" {
		callID = nested.Data.CallID
	}

	status := nested.Data.CallStatus
	if kind == KindCallCompleted && nested.Data.MissedCallType != "" {
		kind = KindMissed
	}

	return Event{
		Kind:           kind,
		CallID:         callID,
		AgentNumber:    nested.Data.DialerNumber,
		AgentName:      nested.Data.AgentName,
		CustomerNumber: nested.Data.ContactNumber,
		ContactName:    nested.Data.ContactName,
		IsContact:      bool(nested.Data.IsContact),
		Direction:      directionString(int(nested.Data.Direction)),
		Status:         status,
		DurationSec:    int(nested.Data.CallDuration),
		RecordingURL:   nested.Data.RecordingMP3,
		QueueName:      nested.Data.QueueName,
		ReceivedAt:     time.Now().UTC(),
	}, nested.Type, true
}

// directionString maps the nested shape's numeric direction flag onto
// the flat schema's string values.
func directionString(d int) string {
	switch d {
	case 0:
		return "inbound"
	case 1:
		return "outbound"
	default:
		return ""
	}
}
