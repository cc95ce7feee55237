// Package anthropic provides a generation service adapter using the
// Anthropic Messages API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Ensure GenerationService implements the interface.
var _ driven.GenerationService = (*GenerationService)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 4096

	apiVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic generation service.
type Config struct {
	// APIKey authenticates against the API. Required.
	APIKey string

	// BaseURL overrides the API endpoint (default: https://api.anthropic.com).
	BaseURL string

	// Model is the chat model to use (default: claude-3-5-haiku-latest).
	Model string

	// Timeout is the whole-stream timeout (default: 120s).
	Timeout time.Duration
}

// GenerationService streams chat completions from the Anthropic Messages
// API over server-sent events.
type GenerationService struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// messagesRequest is the Anthropic Messages API request format. The API
// takes the system prompt as a top-level field, not a message role.
type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent is one SSE data payload of the streamed response.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewGenerationService creates a new Anthropic generation service.
func NewGenerationService(cfg Config) (*GenerationService, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
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
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Stream sends the conversation and returns a channel of answer deltas.
// The channel is closed after the final Done delta or an error delta.
func (s *GenerationService) Stream(ctx context.Context, messages []driven.ChatMessage, opts driven.GenerateOptions) (<-chan domain.StreamDelta, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	reqBody := messagesRequest{
		Model:     s.model,
		MaxTokens: maxTokens,
		Stream:    true,
	}
	for _, m := range messages {
		if m.Role == "system" {
			reqBody.System = m.Content
			continue
		}
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: m.Role, Content: m.Content})
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("anthropic error (status %d): failed to read response", resp.StatusCode)
		}
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}

	out := make(chan domain.StreamDelta)
	go s.pump(ctx, resp.Body, out)
	return out, nil
}

// pump reads SSE data lines off the response body and forwards text deltas.
// Sends race the context so a consumer that stops reading never strands this
// goroutine mid-send.
func (s *GenerationService) pump(ctx context.Context, body io.ReadCloser, out chan<- domain.StreamDelta) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("decode stream event: %w", err)})
			return
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				if !send(ctx, out, domain.StreamDelta{Content: event.Delta.Text}) {
					return
				}
			}
		case "message_stop":
			send(ctx, out, domain.StreamDelta{Done: true})
			return
		case "error":
			send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("anthropic error: %s: %s", event.Error.Type, event.Error.Message)})
			return
		}
	}

	if err := scanner.Err(); err != nil {
		send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("read stream: %w", err)})
		return
	}

	send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("anthropic: stream ended unexpectedly")})
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

// Ping validates the API key with a minimal non-streaming request.
func (s *GenerationService) Ping(ctx context.Context) error {
	reqBody := messagesRequest{
		Model:     s.model,
		MaxTokens: 1,
		Messages:  []chatMessage{{Role: "user", Content: "ping"}},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("anthropic: marshal ping request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("anthropic: API returned status %d", resp.StatusCode)
		}
		return fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (s *GenerationService) Close() error {
	return nil
}
