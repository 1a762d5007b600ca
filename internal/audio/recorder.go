package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const defaultSampleRate = 16000

// Recorder tees the raw PCM of one call session into a file so the
// full recording survives for playback after the call ends.
type Recorder struct {
	audioDir string

	mu         sync.Mutex
	sessionID  string
	rawPath    string
	rawFile    *os.File
	sampleRate int
}

func NewRecorder(audioDir string) *Recorder {
	if audioDir == "" {
		audioDir = filepath.Join("data", "audio")
	}
	return &Recorder{audioDir: audioDir, sampleRate: defaultSampleRate}
}

func (r *Recorder) SetSampleRate(sampleRate int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sampleRate > 0 {
		r.sampleRate = sampleRate
	}
}

// StartSession opens a raw PCM spool file for the session. Any file
// left open by a previous session is closed first.
func (r *Recorder) StartSession(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.audioDir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	if r.rawFile != nil {
		_ = r.rawFile.Close()
	}

	rawPath := filepath.Join(r.audioDir, sessionID+".pcm")
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	r.sessionID = sessionID
	r.rawPath = rawPath
	r.rawFile = rawFile
	return nil
}

// Write appends PCM to the current session spool. Writes outside a
// session are dropped silently so capture never stalls on the recorder.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawFile == nil {
		return len(p), nil
	}
	if _, err := r.rawFile.Write(p); err != nil {
		return 0, fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return len(p), nil
}

// EndSession finalizes the spool into a WAV file and returns its path.
// Returns an empty path when no session was recording.
func (r *Recorder) EndSession() (string, error) {
	r.mu.Lock()
	if r.sessionID == "" || r.rawFile == nil {
		r.mu.Unlock()
		return "", nil
	}

	sessionID := r.sessionID
	rawPath := r.rawPath
	rawFile := r.rawFile
	sampleRate := r.sampleRate

	r.sessionID = ""
	r.rawPath = ""
	r.rawFile = nil
	r.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	pcm, err := os.ReadFile(rawPath)
	if err != nil {
		return "", fmt.Errorf("read raw pcm data: %w", err)
	}

	wavPath := filepath.Join(r.audioDir, sessionID+".wav")
	if err := os.WriteFile(wavPath, EncodeWAV(pcm, sampleRate), 0o644); err != nil {
		return "", fmt.Errorf("write wav file: %w", err)
	}

	_ = os.Remove(rawPath)
	return wavPath, nil
}
