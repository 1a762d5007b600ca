package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/acc-projects/callcoach/internal/audio"
)

type deepgramTranscriber struct {
	client *api.Client
	model  string
}

func newDeepgram(apiKey, model string) *deepgramTranscriber {
	if strings.TrimSpace(model) == "" {
		model = "nova-2"
	}

	rest := client.NewREST(apiKey, &interfaces.ClientOptions{})
	return &deepgramTranscriber{
		client: api.New(rest),
		model:  model,
	}
}

func (t *deepgramTranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:       t.model,
		Punctuate:   true,
		SmartFormat: true,
	}

	resp, err := t.client.FromStream(ctx, bytes.NewReader(chunk.WAV), options)
	if err != nil {
		return "", fmt.Errorf("deepgram transcription for chunk %d: %w", chunk.Seq, err)
	}

	if resp == nil || len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}

	return strings.TrimSpace(resp.Results.Channels[0].Alternatives[0].Transcript), nil
}
