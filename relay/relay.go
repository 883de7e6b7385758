// Package relay drives streaming completions: it forwards live model
// output to the caller while independently ensuring the completed
// exchange is appended to the transcript log.
package relay

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zhenyu92/memchat/domain"
	"github.com/zhenyu92/memchat/llm"
	"github.com/zhenyu92/memchat/memory"
)

// persistTimeout bounds the deferred background append after a stream
// completes.
const persistTimeout = 30 * time.Second

// Fragment is one increment of a streamed reply. A fragment with Done
// set marks normal termination; one with Error set marks abnormal
// termination. The channel is closed after the terminal fragment.
type Fragment struct {
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// Relay assembles the prompt from stored history and relays the
// completion back to the caller.
type Relay struct {
	log          *memory.TranscriptLog
	dir          *memory.Directory
	client       llm.LLMClient
	model        string
	systemPrompt string
}

// New creates a new completion relay.
func New(tlog *memory.TranscriptLog, dir *memory.Directory, client llm.LLMClient, model, systemPrompt string) *Relay {
	return &Relay{
		log:          tlog,
		dir:          dir,
		client:       client,
		model:        model,
		systemPrompt: systemPrompt,
	}
}

// Reply handles the blocking ask path: one completion call, a
// synchronous append, and the persisted assistant message back to the
// caller. Persistence failure propagates; the caller has nothing
// usable yet.
func (r *Relay) Reply(ctx context.Context, sessionID, userText string) (domain.Message, error) {
	if err := r.ensureSession(ctx, sessionID); err != nil {
		return domain.Message{}, err
	}
	history, err := r.log.Read(ctx, sessionID)
	if err != nil {
		return domain.Message{}, err
	}

	resp, err := r.client.CreateChatCompletion(ctx, &llm.ChatCompletionRequest{
		Model:    r.model,
		Messages: r.buildMessages(history, userText),
	})
	if err != nil {
		return domain.Message{}, err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return domain.Message{}, fmt.Errorf("completion returned no choices")
	}

	return r.log.Append(ctx, sessionID, userText, resp.Choices[0].Message.Content)
}

// StreamReply opens a streaming completion and returns a finite,
// non-restartable fragment channel. Fragments are forwarded as they
// arrive and accumulated; on normal stream end the full exchange is
// appended in the background and a Done fragment is emitted. An
// upstream failure mid-stream emits an Error fragment and discards the
// partial reply. If the caller's context is cancelled mid-stream,
// forwarding stops but the buffer accumulated so far is still
// persisted best-effort.
func (r *Relay) StreamReply(ctx context.Context, sessionID, userText string) (<-chan Fragment, error) {
	if err := r.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	history, err := r.log.Read(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	req := &llm.ChatCompletionRequest{
		Model:    r.model,
		Messages: r.buildMessages(history, userText),
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)

		var full strings.Builder
		err := r.client.CreateChatCompletionStream(ctx, req, func(chunk *llm.StreamChunk) error {
			text := chunk.Content()
			if text == "" {
				return nil
			}
			full.WriteString(text)
			select {
			case out <- Fragment{Text: text}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				// Consumer is gone; keep what was accumulated.
				if full.Len() > 0 {
					r.persist(sessionID, userText, full.String())
				}
				return
			}
			log.Printf("ERROR: streaming completion failed for session %s: %v", sessionID, err)
			select {
			case out <- Fragment{Error: err.Error()}:
			case <-ctx.Done():
			}
			return
		}

		r.persist(sessionID, userText, full.String())
		select {
		case out <- Fragment{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

// persist appends the completed exchange in the background. Failure is
// logged and never surfaced: the reply has already been delivered.
func (r *Relay) persist(sessionID, userText, assistantText string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if _, err := r.log.Append(ctx, sessionID, userText, assistantText); err != nil {
			log.Printf("ERROR: failed to persist transcript for session %s: %v", sessionID, err)
		}
	}()
}

func (r *Relay) ensureSession(ctx context.Context, sessionID string) error {
	sess, err := r.dir.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil {
		return domain.ErrSessionNotFound
	}
	return nil
}

// buildMessages prepends the fixed system instruction, replays the
// stored history, and appends the new user message.
func (r *Relay) buildMessages(history []domain.Message, userText string) []llm.ChatMessage {
	messages := make([]llm.ChatMessage, 0, len(history)+2)
	messages = append(messages, llm.ChatMessage{Role: llm.RoleSystem, Content: r.systemPrompt})
	for _, m := range history {
		role := llm.RoleAssistant
		if m.Sender == domain.SenderUser {
			role = llm.RoleUser
		}
		messages = append(messages, llm.ChatMessage{Role: role, Content: m.Content})
	}
	return append(messages, llm.ChatMessage{Role: llm.RoleUser, Content: userText})
}
