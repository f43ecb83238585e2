package llm

import (
	"context"
	"fmt"
)

// Message is a single chat turn. Role is one of "system", "user",
// "assistant".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one generation call.
type ChatRequest struct {
	System      string
	User        string
	History     []Message
	Temperature float64
	// MaxTokens caps the completion length. Zero means provider default.
	// Classification calls set it to 1 to force single-character labels.
	MaxTokens int
}

// Embedder turns text into a fixed-length vector. All calls within one
// document's lifetime return vectors of the same dimensionality.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces text completions.
type Generator interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// Client bundles both gateway capabilities consumed by the pipeline.
type Client interface {
	Embedder
	Generator
}

// GatewayError wraps a failed embedding or generation call. The pipeline
// never retries; the error is propagated to the caller as-is.
type GatewayError struct {
	Op  string // "embed" | "chat"
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
