package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driving"
	"github.com/veritas-labs/veritas-rag/internal/logger"
)

// Ensure Chat implements the interface.
var _ driving.ChatService = (*Chat)(nil)

// ragSystemPrompt instructs the model when document context is available.
const ragSystemPrompt = `You are a helpful assistant answering questions about the user's documents.
Answer using ONLY the provided context. Cite the sources you use as [Source N].
If the context does not contain the answer, say that you don't know.

Context:
%s`

// historyOnlySystemPrompt instructs the model when no chunk cleared the
// relevance threshold and the engine is configured to answer anyway.
const historyOnlySystemPrompt = `You are a helpful assistant. No relevant document context was found for this question.
Answer from the conversation history if possible, and tell the user their documents do not cover the topic.`

// persistTimeout bounds the detached write of a completed exchange.
const persistTimeout = 10 * time.Second

// Chat streams generated answers over retrieved context and persists the
// completed exchange off the delivery path.
type Chat struct {
	retriever *Retriever
	builder   *ContextBuilder
	genSvc    driven.GenerationService
	chatStore driven.ChatStore

	historyWindow        int
	answerWithoutContext bool
}

// NewChat creates the answering service.
func NewChat(
	retriever *Retriever,
	builder *ContextBuilder,
	genSvc driven.GenerationService,
	chatStore driven.ChatStore,
	query domain.QuerySettings,
) *Chat {
	if query.HistoryWindow <= 0 {
		query.HistoryWindow = 10
	}
	return &Chat{
		retriever:            retriever,
		builder:              builder,
		genSvc:               genSvc,
		chatStore:            chatStore,
		historyWindow:        query.HistoryWindow,
		answerWithoutContext: query.AnswerWithoutContext,
	}
}

// Ask retrieves context for the question and streams the generated answer.
// Deltas are forwarded as they arrive; after a successful stream the full
// answer and its source list are persisted on a detached path that never
// blocks delivery. A cancelled caller stops generation and abandons
// persistence; a mid-stream provider error discards the partial answer.
func (c *Chat) Ask(ctx context.Context, req driving.AskRequest) (<-chan domain.StreamDelta, error) {
	if c.genSvc == nil {
		return nil, domain.ErrGenerationUnavailable
	}

	question := strings.TrimSpace(req.Question)
	if question == "" || req.OwnerID == "" {
		return nil, fmt.Errorf("%w: owner and question are required", domain.ErrInvalidInput)
	}

	history, err := c.chatStore.RecentExchanges(ctx, req.OwnerID, req.DocumentID, c.historyWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	scope := domain.SearchScope{OwnerID: req.OwnerID}
	if req.DocumentID != "" {
		scope = domain.SearchScope{DocumentID: req.DocumentID}
	}

	results, err := c.retriever.Retrieve(ctx, question, scope)
	if err != nil {
		return nil, err
	}

	ragCtx, err := c.builder.Build(ctx, results)
	if err != nil {
		return nil, err
	}

	if ragCtx.Empty && !c.answerWithoutContext {
		return nil, domain.ErrNoRelevantContext
	}

	messages := assembleMessages(ragCtx, history, question)

	stream, err := c.genSvc.Stream(ctx, messages, driven.GenerateOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	out := make(chan domain.StreamDelta)
	go c.pump(ctx, req, question, ragCtx.Sources, stream, out)
	return out, nil
}

// pump forwards provider deltas to the caller, accumulating the answer for
// persistence. This is the latency-sensitive path: each delta is sent the
// moment it arrives.
func (c *Chat) pump(
	ctx context.Context,
	req driving.AskRequest,
	question string,
	sources []domain.SourceRef,
	stream <-chan domain.StreamDelta,
	out chan<- domain.StreamDelta,
) {
	defer close(out)

	// Whatever path exits, leave a reader on the provider channel so a
	// provider goroutine mid-send can finish and release its stream.
	defer func() {
		go func() {
			for range stream { //nolint:revive // drain until closed
			}
		}()
	}()

	var answer strings.Builder

	for delta := range stream {
		if delta.Err != nil {
			logger.Warn("Generation failed mid-stream, discarding partial answer: %v", delta.Err)
			c.send(ctx, out, domain.StreamDelta{Err: fmt.Errorf("%w: %w", domain.ErrGenerationFailed, delta.Err)})
			return
		}

		if delta.Content != "" {
			answer.WriteString(delta.Content)
			if !c.send(ctx, out, domain.StreamDelta{Content: delta.Content}) {
				// Caller disconnected: stop and abandon persistence.
				return
			}
		}

		if delta.Done {
			break
		}
	}

	if ctx.Err() != nil {
		return
	}

	c.send(ctx, out, domain.StreamDelta{Done: true})
	c.persistDetached(ctx, req, question, answer.String(), sources)
}

// send delivers a delta unless the caller has gone away.
func (c *Chat) send(ctx context.Context, out chan<- domain.StreamDelta, delta domain.StreamDelta) bool {
	select {
	case out <- delta:
		return true
	case <-ctx.Done():
		return false
	}
}

// persistDetached writes the completed exchange on its own execution path so
// it never blocks token delivery. The write survives the request context
// ending, but a disconnect before completion abandons it entirely.
func (c *Chat) persistDetached(ctx context.Context, req driving.AskRequest, question, answer string, sources []domain.SourceRef) {
	if ctx.Err() != nil {
		return
	}

	exchange := &domain.ChatExchange{
		ID:         uuid.New().String(),
		OwnerID:    req.OwnerID,
		DocumentID: req.DocumentID,
		Question:   question,
		Answer:     answer,
		Sources:    sources,
		CreatedAt:  time.Now().UTC(),
	}

	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()

		if err := c.chatStore.SaveExchange(pctx, exchange); err != nil {
			logger.Error("Failed to persist chat exchange %s: %v", exchange.ID, err)
		}
	}()
}

// History returns up to limit recent exchanges, most recent first.
func (c *Chat) History(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChatExchange, error) {
	if limit <= 0 {
		limit = 50
	}
	return c.chatStore.RecentExchanges(ctx, ownerID, documentID, limit)
}

// assembleMessages builds the single prompt: system instruction with the
// assembled context, the bounded recent history oldest first, then the
// current question.
func assembleMessages(ragCtx *domain.RAGContext, history []domain.ChatExchange, question string) []driven.ChatMessage {
	system := historyOnlySystemPrompt
	if !ragCtx.Empty {
		system = fmt.Sprintf(ragSystemPrompt, ragCtx.Prompt)
	}

	messages := make([]driven.ChatMessage, 0, 2*len(history)+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: system})

	// History arrives most recent first; the prompt wants chronological.
	for i := len(history) - 1; i >= 0; i-- {
		messages = append(messages,
			driven.ChatMessage{Role: "user", Content: history[i].Question},
			driven.ChatMessage{Role: "assistant", Content: history[i].Answer},
		)
	}

	messages = append(messages, driven.ChatMessage{Role: "user", Content: question})
	return messages
}
