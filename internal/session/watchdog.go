package session

import (
	"sync"
	"time"
)

// Watchdog force-ends a session after a configurable stretch without
// any transcribed speech. A zero timeout disables it.
type Watchdog struct {
	timeout   time.Duration
	mu        sync.Mutex
	timer     *time.Timer
	onExpired func()
}

func NewWatchdog(timeout time.Duration) *Watchdog {
	return &Watchdog{timeout: timeout}
}

func (w *Watchdog) OnExpired(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onExpired = callback
}

// Reset restarts the inactivity countdown. Called on session start and
// on every transcribed chunk.
func (w *Watchdog) Reset() {
	if w.timeout <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.timeout, func() {
		w.mu.Lock()
		callback := w.onExpired
		w.timer = nil
		w.mu.Unlock()

		if callback != nil {
			callback()
		}
	})
}

// Disarm cancels any pending countdown. Called when the session stops.
func (w *Watchdog) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
