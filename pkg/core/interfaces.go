package core

import "context"

// LLMConnection defines the interface for LLM connections.
type LLMConnection interface {
	// GenerateContent sends a request to the LLM and returns the response.
	GenerateContent(ctx context.Context, request *LLMRequest) (*LLMResponse, error)

	// Close closes the connection.
	Close(ctx context.Context) error
}

// StreamingConnection is implemented by backends that can stream partial replies.
type StreamingConnection interface {
	GenerateContentStream(ctx context.Context, request *LLMRequest) (<-chan *LLMResponse, error)
}

// ModelLister lists the models available on a backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// Embedder turns text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float64, error)
}
