package audio

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Chunk is an immutable audio segment sealed at a chunk boundary: a
// WAV-encoded byte buffer plus capture metadata. A chunk is consumed
// exactly once by transcription and then discarded; only the
// transcription call for a chunk is ever retried, never the chunk.
type Chunk struct {
	ID         string
	Seq        int
	WAV        []byte
	SampleRate int
	CapturedAt time.Time
}

// Chunker accumulates live PCM and seals it into chunks on demand.
// Capture keeps writing into a fresh segment while a sealed chunk is
// in transcription, so the two activities never block each other.
type Chunker struct {
	mu         sync.Mutex
	pcm        []byte
	sampleRate int
	seq        int
}

func NewChunker(sampleRate int) *Chunker {
	return &Chunker{sampleRate: sampleRate}
}

// Write implements io.Writer so a Mic can stream straight into the
// in-progress segment.
func (c *Chunker) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.pcm = append(c.pcm, p...)
	c.mu.Unlock()
	return len(p), nil
}

// Seal closes the in-progress segment into a Chunk and starts a new
// segment immediately. It returns false when no audio was captured
// since the last seal.
func (c *Chunker) Seal() (Chunk, bool) {
	c.mu.Lock()
	pcm := c.pcm
	c.pcm = nil
	rate := c.sampleRate
	if len(pcm) > 0 {
		c.seq++
	}
	seq := c.seq
	c.mu.Unlock()

	if len(pcm) == 0 {
		return Chunk{}, false
	}

	return Chunk{
		ID:         uuid.NewString(),
		Seq:        seq,
		WAV:        EncodeWAV(pcm, rate),
		SampleRate: rate,
		CapturedAt: time.Now().UTC(),
	}, true
}

// Buffered returns the number of PCM bytes in the in-progress segment.
func (c *Chunker) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pcm)
}
