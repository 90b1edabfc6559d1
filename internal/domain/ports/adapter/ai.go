package adapter

import "context"

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// CompletionRequest carries one streaming completion call.
type CompletionRequest struct {
	Messages    []Message
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Chunk is one incremental fragment of a completion. A chunk with Err set is
// always the last value sent before the channel closes.
type Chunk struct {
	Content string
	Err     error
}

// CompletionStreamer is the port for a streaming LLM completion endpoint.
type CompletionStreamer interface {
	// Provider is a short label used in metrics and logs.
	Provider() string
	Model() string

	// Stream starts the upstream call. The returned channel is closed when the
	// upstream finishes or ctx is cancelled.
	Stream(ctx context.Context, req CompletionRequest) (<-chan Chunk, error)
}

// TokenCounter estimates prompt tokens for metrics.
type TokenCounter interface {
	Count(text string) int
}
