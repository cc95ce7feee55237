package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
	"github.com/veritas-labs/veritas-rag/internal/logger"
)

// Retriever answers the query-time half of the engine: embed the question
// (cached) and run a scoped similarity search. Read-only and safe for
// unlimited concurrent callers.
type Retriever struct {
	embedder    *Embedder
	vectorIndex driven.VectorIndex

	topK     int
	minScore float64
}

// NewRetriever creates a retriever with the configured defaults.
func NewRetriever(embedder *Embedder, vectorIndex driven.VectorIndex, query domain.QuerySettings) *Retriever {
	if query.TopK <= 0 {
		query.TopK = 10
	}
	return &Retriever{
		embedder:    embedder,
		vectorIndex: vectorIndex,
		topK:        query.TopK,
		minScore:    query.MinScore,
	}
}

// Retrieve returns the ranked chunks for a question within scope. An empty
// corpus yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, question string, scope domain.SearchScope) ([]domain.RetrievalResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	logger.Section("Retrieval")
	logger.Debug("Question: %q", question)

	queryVector, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	logger.Debug("Query embedding: %d dimensions", len(queryVector))

	results, err := r.vectorIndex.Search(ctx, queryVector, scope, r.topK, r.minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexFailure, err)
	}

	logger.Debug("Retrieved %d chunks above score %.2f", len(results), r.minScore)
	return results, nil
}
