package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/recallhq/recall-go-sdk/core"
)

const summarySystemPrompt = "You summarize chat transcripts. Reply with a compact " +
	"third-person summary of the conversation so far. Keep names, decisions, " +
	"and open questions. No preamble."

// Anthropic summarizes via the Claude API. Output is still passed
// through the deterministic truncation so the length bound holds no
// matter what the model returns.
type Anthropic struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic creates a Claude-backed summarizer. model defaults to a
// small fast model; summaries do not need a frontier one.
func NewAnthropic(client *anthropic.Client, model string) *Anthropic {
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &Anthropic{
		client:    client,
		model:     model,
		maxTokens: 1024,
	}
}

// Summarize renders the transcript, asks Claude for a summary, and
// truncates the reply to maxLen runes.
func (a *Anthropic) Summarize(ctx context.Context, records []core.MemoryRecord, maxLen int) (string, error) {
	if len(records) == 0 {
		return "", nil
	}

	var transcript strings.Builder
	for _, r := range records {
		transcript.WriteString(string(r.Role))
		transcript.WriteString(": ")
		transcript.WriteString(r.Content)
		transcript.WriteByte('\n')
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(transcript.String())),
		},
		System: []anthropic.TextBlockParam{
			{Text: summarySystemPrompt},
		},
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return Truncate(strings.TrimSpace(text), maxLen), nil
}
