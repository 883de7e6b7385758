package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhenyu92/memchat/llm"
)

const titleInstruction = "Condense the following exchange into a short chat title of at most six words. Reply with the title only."

// TitleInferencer derives a session title from its first exchange with
// a single blocking completion call.
type TitleInferencer struct {
	client llm.LLMClient
	model  string
}

// NewTitleInferencer creates a new title inferencer.
func NewTitleInferencer(client llm.LLMClient, model string) *TitleInferencer {
	return &TitleInferencer{
		client: client,
		model:  model,
	}
}

// Infer returns the first line of the completion, trimmed.
func (t *TitleInferencer) Infer(ctx context.Context, userText, assistantText string) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model: t.model,
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: titleInstruction},
			{Role: llm.RoleUser, Content: fmt.Sprintf("User: %s\nAssistant: %s", userText, assistantText)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to infer title: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", fmt.Errorf("title completion returned no choices")
	}

	title := resp.Choices[0].Message.Content
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title), nil
}
