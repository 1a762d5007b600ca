package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/acc-projects/callcoach/internal/audio"
)

type openAITranscriber struct {
	client *openai.Client
	model  string
}

func newOpenAI(apiKey, model string, o *clientOptions) *openAITranscriber {
	if strings.TrimSpace(model) == "" {
		model = openai.Whisper1
	}

	config := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		config.BaseURL = o.baseURL
	}

	return &openAITranscriber{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (t *openAITranscriber) Transcribe(ctx context.Context, chunk audio.Chunk) (string, error) {
	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: chunk.ID + ".wav",
		Reader:   bytes.NewReader(chunk.WAV),
	}

	resp, err := t.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("whisper transcription for chunk %d: %w", chunk.Seq, err)
	}

	return strings.TrimSpace(resp.Text), nil
}
