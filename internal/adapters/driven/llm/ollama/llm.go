// Package ollama provides a generation service adapter using Ollama.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Ensure GenerationService implements the interface.
var _ driven.GenerationService = (*GenerationService)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Ollama generation service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the chat model to use (default: llama3.2).
	Model string

	// Timeout is the whole-stream timeout (default: 120s).
	Timeout time.Duration
}

// GenerationService streams chat completions from the Ollama /api/chat
// endpoint, which emits newline-delimited JSON.
type GenerationService struct {
	client  *http.Client
	baseURL string
	model   string
}

// chatRequest is the Ollama chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// chatChunk is one NDJSON line of the streamed response.
type chatChunk struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// NewGenerationService creates a new Ollama generation service.
func NewGenerationService(cfg Config) *GenerationService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &GenerationService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
	}
}

// Stream sends the conversation and returns a channel of answer deltas.
// The channel is closed after the final Done delta or an error delta.
func (s *GenerationService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.GenerateOptions) (<-chan domain.StreamDelta, error) {
	reqBody := chatRequest{
		Model:    s.model,
		Messages: make([]chatMessage, len(messages)),
		Stream:   true,
	}
	for i, m := range messages {
		reqBody.Messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	if opts.MaxTokens > 0 || opts.Temperature > 0 {
		reqBody.Options = &chatOptions{
			NumPredict:  opts.MaxTokens,
			Temperature: opts.Temperature,
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/chat",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	out := make(chan domain.StreamDelta)
	go s.pump(ctx, resp.Body, out)
	return out, nil
}

// pump reads NDJSON lines off the response body and forwards them as deltas.
// Sends race the context so a consumer that stops reading never strands this
// goroutine mid-send.
func (s *GenerationService) pump(ctx context.Context, body io.ReadCloser, out chan<- domain.StreamDelta) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var chunk chatChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("decode stream chunk: %w", err)})
			return
		}
		if chunk.Error != "" {
			send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("ollama error: %s", chunk.Error)})
			return
		}

		if chunk.Message.Content != "" {
			if !send(ctx, out, domain.StreamDelta{Content: chunk.Message.Content}) {
				return
			}
		}
		if chunk.Done {
			send(ctx, out, domain.StreamDelta{Done: true})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("read stream: %w", err)})
		return
	}

	// Stream ended without a done marker.
	send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("ollama: stream ended unexpectedly")})
}

// send delivers a delta unless the caller has gone away.
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

// Ping validates the service is reachable by checking the /api/tags endpoint.
func (s *GenerationService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", http.NoBody)
	if err != nil {
		return fmt.Errorf("ollama: failed to create ping request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *GenerationService) Close() error {
	return nil
}
