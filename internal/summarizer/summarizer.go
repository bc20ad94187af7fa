// Package summarizer turns a conference transcript into a meeting summary
// through an external text-completion service.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"github.com/xenn00/conference-system/internal/entity"
)

const systemPrompt = "You are an assistant that writes video conference summaries. Produce structured, useful summaries."

const promptTemplate = `Analyze the video conference transcript and write a short summary of the meeting.
Include the main topics, decisions, action items and important moments.

Transcript:
%s`

// TextCompleter is the text-completion collaborator. A nil TextCompleter
// means summaries are unavailable.
type TextCompleter interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Transcript renders text messages as "<user>: <content>" lines.
// System messages are skipped.
func Transcript(messages []entity.ConferenceMessage) string {
	var b strings.Builder
	for _, m := range messages {
		if m.Type != entity.MessageTypeText {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.UserID)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// Summarize asks completer for a summary of transcript.
func Summarize(ctx context.Context, completer TextCompleter, transcript string) (string, error) {
	return completer.Complete(ctx, systemPrompt, fmt.Sprintf(promptTemplate, transcript))
}

type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAICompleter returns nil when apiKey is empty.
func NewOpenAICompleter(apiKey, model string, maxTokens int) *OpenAICompleter {
	if apiKey == "" {
		return nil
	}
	return &OpenAICompleter{
		client:    openai.NewClient(apiKey),
		model:     model,
		maxTokens: maxTokens,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	log.Debug().Str("model", c.model).Int("total_tokens", resp.Usage.TotalTokens).Msg("summary generated")
	return resp.Choices[0].Message.Content, nil
}
