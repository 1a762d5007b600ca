// Package session runs the call session lifecycle: one session at a
// time moves Idle -> Initializing -> Active -> Stopping -> Ended,
// capturing microphone audio in fixed intervals and transcribing the
// chunks in capture order while the call is live.
package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/acc-projects/callcoach/internal/audio"
	"github.com/acc-projects/callcoach/internal/transcribe"
)

const (
	defaultChunkInterval   = 5 * time.Second
	defaultMaxRetries      = 3
	defaultRetryBaseDelay  = time.Second
	defaultFramesPerBuffer = 1024
	defaultDrainTimeout    = 30 * time.Second
)

// Deps are the collaborators a Controller drives. Dialer, Transcriber
// and Store are required; the rest degrade gracefully when nil.
type Deps struct {
	Dialer      DialerClient
	Transcriber transcribe.Transcriber
	Store       Store
	Recorder    Recorder
	Grader      Grader
	Coach       Coach
	Hub         EventBroadcaster

	// Credentials is checked before any network or device access on
	// Start. Nil skips the check.
	Credentials func() error
}

type Options struct {
	WebhookURL      string
	ChunkInterval   time.Duration
	MaxRetries      int
	RetryBaseDelay  time.Duration
	SampleRates     []int
	FramesPerBuffer int
	IdleTimeout     time.Duration
	DrainTimeout    time.Duration
}

// Status is a snapshot of the controller for the status API.
type Status struct {
	State     State     `json:"state"`
	SessionID string    `json:"session_id,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
}

type Controller struct {
	deps     Deps
	opts     Options
	watchdog *Watchdog

	// Injection points for tests.
	openMic func(sampleRates []int, framesPerBuffer int) (CaptureSource, int, error)
	sleep   func(ctx context.Context, d time.Duration)

	mu           sync.Mutex
	state        State
	sessionID    string
	startedAt    time.Time
	mic          CaptureSource
	chunker      *audio.Chunker
	chunks       chan audio.Chunk
	parts        []string
	tickerStop   chan struct{}
	tickerDone   chan struct{}
	workerDone   chan struct{}
	workerCancel context.CancelFunc
}

func NewController(deps Deps, opts Options) *Controller {
	if opts.ChunkInterval <= 0 {
		opts.ChunkInterval = defaultChunkInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = defaultRetryBaseDelay
	}
	if opts.FramesPerBuffer <= 0 {
		opts.FramesPerBuffer = defaultFramesPerBuffer
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = defaultDrainTimeout
	}

	c := &Controller{
		deps:     deps,
		opts:     opts,
		watchdog: NewWatchdog(opts.IdleTimeout),
		openMic: func(sampleRates []int, framesPerBuffer int) (CaptureSource, int, error) {
			return audio.OpenMic(sampleRates, framesPerBuffer)
		},
		sleep: sleepCtx,
		state: StateIdle,
	}

	c.watchdog.OnExpired(func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultDrainTimeout)
		defer cancel()
		if err := c.Stop(ctx); err != nil && err != ErrNoActiveSession {
			log.Printf("session: idle watchdog stop failed: %v", err)
		}
	})

	return c
}

// Start opens a remote dialer session, acquires the microphone and
// begins chunked capture. Every failure rolls back side effects already
// taken and leaves the controller in Idle.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.state != StateIdle && c.state != StateEnded {
		c.mu.Unlock()
		return "", ErrSessionActive
	}
	c.state = StateInitializing
	c.mu.Unlock()

	fail := func(err error) (string, error) {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
		return "", err
	}

	if c.deps.Credentials != nil {
		if err := c.deps.Credentials(); err != nil {
			return fail(fmt.Errorf("%w: %v", ErrNotConfigured, err))
		}
	}

	sessionID, err := c.deps.Dialer.CreateSession(ctx, c.opts.WebhookURL)
	if err != nil {
		return fail(fmt.Errorf("create remote session: %w", err))
	}

	mic, rate, err := c.openMic(c.opts.SampleRates, c.opts.FramesPerBuffer)
	if err != nil {
		c.endRemote(sessionID)
		return fail(fmt.Errorf("open microphone: %w", err))
	}

	if c.deps.Recorder != nil {
		c.deps.Recorder.SetSampleRate(rate)
		if err := c.deps.Recorder.StartSession(sessionID); err != nil {
			_ = mic.Close()
			c.endRemote(sessionID)
			return fail(fmt.Errorf("start recorder session: %w", err))
		}
	}

	startedAt := time.Now().UTC()
	if err := c.deps.Store.CreateCall(sessionID, startedAt); err != nil {
		if c.deps.Recorder != nil {
			_, _ = c.deps.Recorder.EndSession()
		}
		_ = mic.Close()
		c.endRemote(sessionID)
		return fail(fmt.Errorf("create call record: %w", err))
	}

	if err := mic.Start(); err != nil {
		if c.deps.Recorder != nil {
			_, _ = c.deps.Recorder.EndSession()
		}
		_ = mic.Close()
		_ = c.deps.Store.EndCall(sessionID, time.Now().UTC(), "", "")
		c.endRemote(sessionID)
		return fail(fmt.Errorf("start capture: %w", err))
	}

	chunker := audio.NewChunker(rate)
	workerCtx, workerCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.sessionID = sessionID
	c.startedAt = startedAt
	c.mic = mic
	c.chunker = chunker
	c.chunks = make(chan audio.Chunk, 32)
	c.parts = nil
	c.tickerStop = make(chan struct{})
	c.tickerDone = make(chan struct{})
	c.workerDone = make(chan struct{})
	c.workerCancel = workerCancel
	c.state = StateActive

	chunks := c.chunks
	tickerStop := c.tickerStop
	tickerDone := c.tickerDone
	workerDone := c.workerDone
	c.mu.Unlock()

	go c.capture(mic, chunker)
	go c.sealLoop(chunker, chunks, tickerStop, tickerDone)
	go c.transcribeLoop(workerCtx, sessionID, chunks, workerDone)

	c.watchdog.Reset()

	if c.deps.Hub != nil {
		c.deps.Hub.BroadcastSessionStarted(sessionID)
	}

	log.Printf("session: started %s (sample rate %d)", sessionID, rate)
	return sessionID, nil
}

// Stop drains capture, finalizes the recording, terminates the remote
// session best-effort and persists the transcript. The microphone is
// released on every path.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateActive {
		c.mu.Unlock()
		return ErrNoActiveSession
	}
	c.state = StateStopping
	sessionID := c.sessionID
	startedAt := c.startedAt
	mic := c.mic
	chunker := c.chunker
	chunks := c.chunks
	tickerStop := c.tickerStop
	tickerDone := c.tickerDone
	workerDone := c.workerDone
	workerCancel := c.workerCancel
	c.mu.Unlock()

	c.watchdog.Disarm()

	// No new chunks are scheduled past this point.
	close(tickerStop)
	<-tickerDone

	if err := mic.Stop(); err != nil {
		log.Printf("session: stop capture stream: %v", err)
	}
	if err := mic.Close(); err != nil {
		log.Printf("session: release microphone: %v", err)
	}

	// Flush whatever the final partial interval captured, exactly once.
	if chunk, ok := chunker.Seal(); ok {
		select {
		case chunks <- chunk:
		case <-ctx.Done():
			log.Printf("session: dropped final chunk %d: %v", chunk.Seq, ctx.Err())
		}
	}
	close(chunks)

	// Bounded drain: give in-flight transcriptions a window to finish,
	// then cancel the rest.
	drain := time.NewTimer(c.opts.DrainTimeout)
	select {
	case <-workerDone:
	case <-drain.C:
		workerCancel()
		<-workerDone
	case <-ctx.Done():
		workerCancel()
		<-workerDone
	}
	drain.Stop()
	workerCancel()

	audioPath := ""
	if c.deps.Recorder != nil {
		path, err := c.deps.Recorder.EndSession()
		if err != nil {
			log.Printf("session: finalize recording: %v", err)
		} else {
			audioPath = path
		}
	}

	c.endRemote(sessionID)

	transcript := strings.Join(c.takeParts(), " ")
	endedAt := time.Now().UTC()

	storeErr := c.deps.Store.EndCall(sessionID, endedAt, transcript, audioPath)
	if storeErr != nil {
		storeErr = fmt.Errorf("end call record: %w", storeErr)
	}

	c.mu.Lock()
	c.state = StateEnded
	c.sessionID = ""
	c.mic = nil
	c.chunker = nil
	c.chunks = nil
	c.workerCancel = nil
	c.mu.Unlock()

	if c.deps.Hub != nil {
		c.deps.Hub.BroadcastSessionEnded(sessionID, endedAt.Sub(startedAt))
	}

	go c.gradeSession(sessionID, transcript)

	log.Printf("session: ended %s after %s", sessionID, endedAt.Sub(startedAt).Round(time.Second))
	return storeErr
}

// Status returns the controller snapshot for the status API.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.state, SessionID: c.sessionID, StartedAt: c.startedAt}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) CurrentSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Controller) capture(mic CaptureSource, chunker *audio.Chunker) {
	var w io.Writer = chunker
	if c.deps.Recorder != nil {
		w = io.MultiWriter(chunker, c.deps.Recorder)
	}
	if err := mic.Stream(w); err != nil && c.State() == StateActive {
		log.Printf("session: capture stream ended: %v", err)
	}
}

func (c *Controller) sealLoop(chunker *audio.Chunker, chunks chan<- audio.Chunk, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.ChunkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if chunk, ok := chunker.Seal(); ok {
				chunks <- chunk
			}
		}
	}
}

// transcribeLoop is the single consumer of the chunk channel, so
// transcript parts always land in capture order regardless of how long
// individual transcriptions or their retries take.
func (c *Controller) transcribeLoop(ctx context.Context, sessionID string, chunks <-chan audio.Chunk, done chan<- struct{}) {
	defer close(done)

	for chunk := range chunks {
		text, err := c.transcribeWithRetry(ctx, chunk)
		if err != nil {
			log.Printf("session: dropping chunk %d of %s: %v", chunk.Seq, sessionID, err)
			continue
		}
		if text == "" {
			continue
		}

		c.mu.Lock()
		c.parts = append(c.parts, text)
		c.mu.Unlock()

		c.watchdog.Reset()

		if c.deps.Hub != nil {
			c.deps.Hub.BroadcastLiveTranscript(sessionID, chunk.Seq, text)
		}
	}
}

// transcribeWithRetry attempts the transcription up to MaxRetries
// times, doubling the delay after each failure. Exhaustion surfaces as
// an error; the chunk itself is never re-queued.
func (c *Controller) transcribeWithRetry(ctx context.Context, chunk audio.Chunk) (string, error) {
	delay := c.opts.RetryBaseDelay
	var lastErr error

	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := c.deps.Transcriber.Transcribe(ctx, chunk)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if attempt < c.opts.MaxRetries-1 {
			c.sleep(ctx, delay)
			delay *= 2
		}
	}

	return "", fmt.Errorf("transcription failed after %d attempts: %w", c.opts.MaxRetries, lastErr)
}

// endRemote terminates the remote dialer session. Failures are logged
// and swallowed; the local lifecycle never depends on the provider.
func (c *Controller) endRemote(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.deps.Dialer.EndSession(ctx, sessionID); err != nil {
		log.Printf("session: remote end for %s failed (continuing): %v", sessionID, err)
	}
}

func (c *Controller) gradeSession(sessionID, transcript string) {
	if c.deps.Grader == nil {
		return
	}

	result := c.deps.Grader.Grade(sessionID, transcript)

	if c.deps.Coach != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		notes, err := c.deps.Coach.Notes(ctx, result)
		cancel()
		if err != nil {
			log.Printf("session: coach notes for %s failed, keeping heuristic notes: %v", sessionID, err)
		} else if notes != "" {
			result.Notes = notes
		}
	}

	if err := c.deps.Store.SaveGrade(result); err != nil {
		log.Printf("session: save grade for %s: %v", sessionID, err)
		return
	}

	if c.deps.Hub != nil {
		c.deps.Hub.BroadcastGradeReady(result)
	}
}

func (c *Controller) takeParts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	parts := c.parts
	c.parts = nil
	return parts
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
