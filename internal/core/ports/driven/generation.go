package driven

import (
	"context"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

// GenerationService produces streaming text completions.
//
// Implementations may include:
//   - Ollama (local models)
//   - OpenAI (GPT family)
//   - Anthropic (Claude family)
type GenerationService interface {
	// Stream starts a streaming completion for the conversation and
	// returns a channel of deltas. The channel is closed after the final
	// delta (Done=true) or a terminal error delta. Cancelling ctx stops
	// the underlying request.
	Stream(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (<-chan domain.StreamDelta, error)

	// ModelName returns the name of the generation model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
