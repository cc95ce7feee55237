// Package openai provides a generation service adapter backed by the
// OpenAI chat completions API, or any compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Ensure GenerationService implements the interface.
var _ driven.GenerationService = (*GenerationService)(nil)

// Default configuration values.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI generation service.
type Config struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// BaseURL overrides the API endpoint for compatible providers.
	BaseURL string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the whole-stream timeout (default: 120s).
	Timeout time.Duration
}

// GenerationService streams chat completions through the OpenAI client.
type GenerationService struct {
	client  *goopenai.Client
	model   string
	timeout time.Duration
}

// NewGenerationService creates a new OpenAI generation service.
func NewGenerationService(cfg Config) (*GenerationService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &GenerationService{
		client:  goopenai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Stream sends the conversation and returns a channel of answer deltas.
// The channel is closed after the final Done delta or an error delta.
func (s *GenerationService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.GenerateOptions) (<-chan domain.StreamDelta, error) {
	req := goopenai.ChatCompletionRequest{
		Model:    s.model,
		Messages: make([]goopenai.ChatCompletionMessage, len(messages)),
		Stream:   true,
	}
	for i, m := range messages {
		req.Messages[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	if opts.MaxTokens > 0 {
		req.MaxTokens = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		req.Temperature = float32(opts.Temperature)
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	stream, err := s.client.CreateChatCompletionStream(sctx, req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("openai: create stream: %w", err)
	}

	out := make(chan domain.StreamDelta)
	go func() {
		defer close(out)
		defer cancel()
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(sctx, out, domain.StreamDelta{Done: true})
				return
			}
			if err != nil {
				send(sctx, out, domain.StreamDelta{Err: fmt.Errorf("openai: stream recv: %w", err)})
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if content := resp.Choices[0].Delta.Content; content != "" {
				if !send(sctx, out, domain.StreamDelta{Content: content}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// send delivers a delta unless the caller has gone away. The select keeps
// this goroutine from stranding mid-send when the consumer stops reading.
func send(ctx context.Context, out chan<- domain.StreamDelta, delta domain.StreamDelta) bool {
	select {
	case out <- delta:
		return true
	case <-ctx.Done():
		return false
	}
}

// ModelName returns the name of the chat model being used.
func (s *GenerationService) ModelName() string {
	return s.model
}

// Ping validates the API key and connectivity with a minimal completion.
func (s *GenerationService) Ping(ctx context.Context) error {
	rctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.CreateChatCompletion(rctx, goopenai.ChatCompletionRequest{
		Model: s.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: "ping"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	return nil
}

// Close releases resources.
func (s *GenerationService) Close() error {
	return nil
}
