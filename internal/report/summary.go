package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Summarizer wraps the Anthropic API to turn a report into a short
// natural-language summary for status mails and standups.
type Summarizer struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewSummarizer creates a Summarizer with the given API key and model.
func NewSummarizer(apiKey, model string) *Summarizer {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Summarizer{
		api:   &client,
		model: anthropic.Model(model),
	}
}

func buildSummaryPrompt(r *Report) (system string, user string) {
	system = `You summarize time-tracking reports for a consulting team. Write 2-4 plain sentences: total time recorded, the busiest projects, and anything notable (open sessions, uneven distribution). No markdown, no bullet points, no preamble.`

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sessions: %d (%d still open)\n", r.Sessions, r.OpenSessions)
	fmt.Fprintf(&sb, "Total recorded: %dh%02dm\n", r.Hours, r.Minutes)
	if r.From != nil {
		fmt.Fprintf(&sb, "From: %s\n", r.From.Format("2006-01-02"))
	}
	if r.To != nil {
		fmt.Fprintf(&sb, "To: %s\n", r.To.Format("2006-01-02"))
	}
	sb.WriteString("\nBy project:\n")
	for _, t := range r.ByProject {
		fmt.Fprintf(&sb, "- %s: %dh%02dm over %d sessions\n", t.Key, t.Hours, t.Minutes, t.Sessions)
	}
	sb.WriteString("\nBy collaborator:\n")
	for _, t := range r.ByCollaborator {
		fmt.Fprintf(&sb, "- %s: %dh%02dm over %d sessions\n", t.Key, t.Hours, t.Minutes, t.Sessions)
	}
	user = sb.String()
	return
}

// Summarize sends the report to the LLM and returns the generated text.
func (s *Summarizer) Summarize(ctx context.Context, r *Report) (string, error) {
	systemPrompt, userPrompt := buildSummaryPrompt(r)

	msg, err := s.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.model,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return strings.TrimSpace(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}
