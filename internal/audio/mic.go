package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/gordonklaus/portaudio"
)

// ErrMicUnavailable reports that no capture device could be opened at
// any candidate sample rate. Callers surface this as a permission or
// device failure; the session must roll back without side effects.
var ErrMicUnavailable = errors.New("microphone unavailable")

// Mic wraps PortAudio with a configurable buffer size.
type Mic struct {
	stream *portaudio.Stream
	buf    []int16
	rate   int
}

// NewMic opens a PortAudio capture stream with the given sample rate
// and buffer size (in frames).
func NewMic(sampleRate, framesPerBuffer int) (*Mic, error) {
	buf := make([]int16, framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		return nil, err
	}
	return &Mic{stream: stream, buf: buf, rate: sampleRate}, nil
}

// OpenMic tries each candidate sample rate in order and returns the
// first mic that opens, along with its rate.
func OpenMic(sampleRates []int, framesPerBuffer int) (*Mic, int, error) {
	var lastErr error
	for _, rate := range sampleRates {
		mic, err := NewMic(rate, framesPerBuffer)
		if err != nil {
			lastErr = err
			continue
		}
		return mic, rate, nil
	}
	if lastErr != nil {
		return nil, 0, errors.Join(ErrMicUnavailable, lastErr)
	}
	return nil, 0, ErrMicUnavailable
}

func (m *Mic) SampleRate() int { return m.rate }

func (m *Mic) Start() error { return m.stream.Start() }
func (m *Mic) Stop() error  { return m.stream.Stop() }

// Close releases the underlying device handle. Safe to call after Stop
// on every teardown path.
func (m *Mic) Close() error { return m.stream.Close() }

// Stream reads from the mic and writes PCM16-LE to w until an error or stop.
func (m *Mic) Stream(w io.Writer) error {
	var out bytes.Buffer
	out.Grow(len(m.buf) * 2) // int16 = 2 bytes per sample
	for {
		if err := m.stream.Read(); err != nil {
			return err
		}
		out.Reset()
		if err := binary.Write(&out, binary.LittleEndian, m.buf); err != nil {
			return err
		}
		if _, err := w.Write(out.Bytes()); err != nil {
			return err
		}
	}
}
