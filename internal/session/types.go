package session

import (
	"context"
	"io"
	"time"

	"github.com/acc-projects/callcoach/internal/grading"
)

// DialerClient opens and terminates remote call sessions with the
// telephony provider.
type DialerClient interface {
	CreateSession(ctx context.Context, webhookURL string) (string, error)
	EndSession(ctx context.Context, sessionID string) error
}

// CaptureSource is an open microphone stream.
type CaptureSource interface {
	SampleRate() int
	Start() error
	Stop() error
	Close() error
	Stream(w io.Writer) error
}

// Recorder persists the full-session audio alongside chunked capture.
type Recorder interface {
	io.Writer
	SetSampleRate(sampleRate int)
	StartSession(sessionID string) error
	EndSession() (string, error)
}

// Store persists call sessions and their grades.
type Store interface {
	CreateCall(id string, startedAt time.Time) error
	EndCall(id string, endedAt time.Time, transcript, audioPath string) error
	SaveGrade(result grading.Result) error
}

// Grader scores a finished transcript.
type Grader interface {
	Grade(sessionID, transcript string) grading.Result
}

// Coach optionally rewrites heuristic notes into model-generated
// coaching feedback after grading.
type Coach interface {
	Notes(ctx context.Context, result grading.Result) (string, error)
}

// EventBroadcaster pushes session lifecycle and transcript events to
// connected clients.
type EventBroadcaster interface {
	BroadcastSessionStarted(sessionID string)
	BroadcastLiveTranscript(sessionID string, seq int, text string)
	BroadcastSessionEnded(sessionID string, duration time.Duration)
	BroadcastGradeReady(result grading.Result)
}
