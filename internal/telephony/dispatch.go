package telephony

import (
	"errors"
	"log"
	"sync"
)

// ErrBadSignature is returned by HandleInbound when the payload fails
// authentication. The caller rejects the request without normalizing.
var ErrBadSignature = errors.New("invalid webhook signature")

// Listener consumes canonical events. Listeners needing idempotence
// must key off CallID/SessionID themselves; the dispatcher delivers
// events exactly as the provider sent them.
type Listener func(Event)

// Dispatcher verifies, normalizes, and fans out inbound webhook
// payloads. The listener registry is append-only and lives for the
// process lifetime.
type Dispatcher struct {
	secret string

	mu        sync.RWMutex
	listeners []Listener
	dropped   uint64
	delivered uint64
}

func NewDispatcher(secret string) *Dispatcher {
	return &Dispatcher{secret: secret}
}

func (d *Dispatcher) AddListener(fn Listener) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

// HandleInbound processes one raw webhook delivery. It returns
// ErrBadSignature on failed authentication; an unrecognized event type
// is a silent no-op (nil error) so the provider is not retry-stormed.
func (d *Dispatcher) HandleInbound(raw []byte, signatureHex string) error {
	if !VerifySignature(raw, signatureHex, d.secret) {
		return ErrBadSignature
	}

	event, err := Normalize(raw)
	if err != nil {
		var unknown ErrUnknownEvent
		if errors.As(err, &unknown) {
			d.mu.Lock()
			d.dropped++
			d.mu.Unlock()
			return nil
		}
		return err
	}

	d.Dispatch(event)
	return nil
}

// Dispatch invokes every registered listener synchronously, in
// registration order. A panicking listener is logged and skipped; it
// never prevents subsequent listeners from running.
func (d *Dispatcher) Dispatch(event Event) {
	d.mu.RLock()
	listeners := d.listeners
	d.mu.RUnlock()

	for _, fn := range listeners {
		invoke(fn, event)
	}

	d.mu.Lock()
	d.delivered++
	d.mu.Unlock()
}

// Stats returns delivered and dropped (unknown-type) event counts.
func (d *Dispatcher) Stats() (delivered, dropped uint64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.delivered, d.dropped
}

func invoke(fn Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("telephony listener panic on %s event: %v", event.Kind, r)
		}
	}()
	fn(event)
}
