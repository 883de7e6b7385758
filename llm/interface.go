package llm

import "context"

// LLMClient defines the interface for the completion collaborator.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// CreateChatCompletionStream sends a streaming chat completion request.
	// The callback is called for each chunk received.
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) error

	// CreateEmbedding returns the embedding vector for the given input.
	CreateEmbedding(ctx context.Context, model, input string) ([]float32, error)
}

// Ensure Client implements LLMClient interface.
var _ LLMClient = (*Client)(nil)
