// Package transcribe turns sealed audio chunks into text through an
// external speech-to-text provider.
package transcribe

import (
	"context"
	"fmt"

	"github.com/acc-projects/callcoach/internal/audio"
)

// Transcriber converts one audio chunk into recognized text. An empty
// or whitespace-only result means "no words", not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, chunk audio.Chunk) (string, error)
}

type Option func(*clientOptions)

type clientOptions struct {
	baseURL string
}

// WithBaseURL overrides the provider endpoint, used by tests.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// New builds a Transcriber for the named provider.
func New(provider, apiKey, model string, opts ...Option) (Transcriber, error) {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAI(apiKey, model, o), nil
	case "deepgram":
		return newDeepgram(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown transcription provider %q: supported providers are openai, deepgram", provider)
	}
}
