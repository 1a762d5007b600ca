package grading

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Coach rewrites heuristic grades into richer coaching notes with a
// chat model. It is optional; callers fall back to the heuristic notes
// when the coach is unset or fails.
type Coach struct {
	client *openai.Client
	model  string
	sleep  func(time.Duration)
}

func NewCoach(apiKey, model string) *Coach {
	config := openai.DefaultConfig(apiKey)
	return NewCoachWithConfig(config, model)
}

func NewCoachWithConfig(config openai.ClientConfig, model string) *Coach {
	if strings.TrimSpace(model) == "" {
		model = "gpt-4o-mini"
	}
	return &Coach{
		client: openai.NewClientWithConfig(config),
		model:  model,
		sleep:  time.Sleep,
	}
}

// Notes produces coaching feedback for a graded call. Transcripts that
// are too short to coach return empty notes without an API call.
func (c *Coach) Notes(ctx context.Context, result Result) (string, error) {
	if len(strings.Fields(result.Transcript)) < 20 {
		return "", nil
	}

	prompt := fmt.Sprintf(
		"An agent's sales call was graded (1-10): tone %d, script adherence %d, presentation %d, objection handling %d, speaking %d, overall %d.\n\nTranscript:\n%s\n\nWrite three short, specific coaching points for this agent in plain prose.",
		result.Scores.Tone, result.Scores.OnScript, result.Scores.Presentation,
		result.Scores.ObjectionHandling, result.Scores.Speaking, result.Scores.Overall,
		result.Transcript,
	)

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a sales call coach. Be concrete and brief.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	backoff := []time.Duration{1 * time.Second, 4 * time.Second, 16 * time.Second}
	var lastErr error
	for attempt := 0; attempt < len(backoff); attempt++ {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", nil
			}
			return strings.TrimSpace(resp.Choices[0].Message.Content), nil
		}

		lastErr = err
		if attempt < len(backoff)-1 {
			c.sleep(backoff[attempt])
		}
	}

	return "", fmt.Errorf("coach notes failed after retries: %w", lastErr)
}
