package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scriptable implementation of LLMClient for testing.
// The zero value answers every completion with a canned response.
type MockClient struct {
	// Response is returned by CreateChatCompletion.
	Response string
	// Fragments are emitted one chunk each by CreateChatCompletionStream.
	Fragments []string
	// Embedding is returned by CreateEmbedding.
	Embedding []float32

	// CompletionErr, StreamErr and EmbedErr force the corresponding
	// call to fail. StreamErr is returned after Fragments are emitted,
	// simulating a mid-flight stream failure.
	CompletionErr error
	StreamErr     error
	EmbedErr      error

	mu       sync.Mutex
	requests []*ChatCompletionRequest
}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements LLMClient interface.
var _ LLMClient = (*MockClient)(nil)

// Requests returns a snapshot of all completion requests received.
func (m *MockClient) Requests() []*ChatCompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ChatCompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockClient) record(req *ChatCompletionRequest) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
}

// CreateChatCompletion returns the scripted response.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	m.record(req)
	if m.CompletionErr != nil {
		return nil, m.CompletionErr
	}

	content := m.Response
	if content == "" {
		content = "[MOCK] This is a mock response from the LLM client."
	}

	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index: 0,
				Message: &ChatMessage{
					Role:    RoleAssistant,
					Content: content,
				},
				FinishReason: "stop",
			},
		},
	}, nil
}

// CreateChatCompletionStream emits the scripted fragments.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) error {
	m.record(req)

	id := fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano())
	created := time.Now().Unix()

	for i, fragment := range m.Fragments {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		finishReason := ""
		if i == len(m.Fragments)-1 && m.StreamErr == nil {
			finishReason = "stop"
		}

		chunk := &StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []Choice{
				{
					Index: 0,
					Delta: &ChatMessage{
						Role:    RoleAssistant,
						Content: fragment,
					},
					FinishReason: finishReason,
				},
			},
		}

		if err := callback(chunk); err != nil {
			return err
		}
	}

	return m.StreamErr
}

// CreateEmbedding returns the scripted embedding.
func (m *MockClient) CreateEmbedding(ctx context.Context, model, input string) ([]float32, error) {
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	if m.Embedding != nil {
		return m.Embedding, nil
	}
	return make([]float32, 4), nil
}
