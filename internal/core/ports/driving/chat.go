package driving

import (
	"context"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

// AskRequest describes one question against a user's corpus.
type AskRequest struct {
	// OwnerID identifies the asking user.
	OwnerID string

	// DocumentID scopes retrieval to one document when non-empty;
	// otherwise all of the owner's completed documents are searched.
	DocumentID string

	// Question is the user's question.
	Question string
}

// ChatService answers questions over indexed documents with a streaming
// response and persisted provenance.
type ChatService interface {
	// Ask retrieves relevant chunks, assembles a token-budgeted context
	// and streams the generated answer. The returned channel is closed
	// after the final delta or a terminal error delta. Cancelling ctx
	// stops generation and abandons persistence of the partial answer.
	Ask(ctx context.Context, req AskRequest) (<-chan domain.StreamDelta, error)

	// History returns up to limit recent exchanges, most recent first.
	History(ctx context.Context, ownerID, documentID string, limit int) ([]domain.ChatExchange, error)
}
