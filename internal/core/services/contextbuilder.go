package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
	"github.com/veritas-labs/veritas-rag/internal/logger"
)

// DefaultTokenBudget caps the assembled context size in estimated tokens.
const DefaultTokenBudget = 4000

// ContextBuilder turns ranked retrieval results into a prompt-ready context
// bounded by a token budget, with provenance for citation.
type ContextBuilder struct {
	docStore    driven.DocumentStore
	tokenBudget int
}

// NewContextBuilder creates a builder. The document store resolves display
// names for provenance records.
func NewContextBuilder(docStore driven.DocumentStore, query domain.QuerySettings) *ContextBuilder {
	budget := query.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	return &ContextBuilder{
		docStore:    docStore,
		tokenBudget: budget,
	}
}

// Build greedily includes chunks in ranked order, summing their precomputed
// token counts and stopping before the budget is exceeded. The results are
// trusted to be relevance-filtered already; the builder does not dedupe
// beyond what chunk overlap handles. Zero input chunks produce an explicit
// no-relevant-context signal, not an empty string.
func (b *ContextBuilder) Build(ctx context.Context, results []domain.RetrievalResult) (*domain.RAGContext, error) {
	if len(results) == 0 {
		logger.Debug("No chunks cleared the relevance threshold")
		return &domain.RAGContext{Empty: true}, nil
	}

	names := make(map[string]string)
	var sb strings.Builder
	var sources []domain.SourceRef
	total := 0

	for _, res := range results {
		count := res.Chunk.TokenCount
		if total+count > b.tokenBudget {
			break
		}

		name, err := b.documentName(ctx, names, res.Chunk.DocumentID)
		if err != nil {
			return nil, err
		}

		fmt.Fprintf(&sb, "[Source %d: %s]\n%s\n\n", len(sources)+1, name, res.Chunk.Content)
		sources = append(sources, domain.SourceRef{
			DocumentID:   res.Chunk.DocumentID,
			DocumentName: name,
			ChunkID:      res.Chunk.ID,
			Position:     res.Chunk.Position,
			Score:        res.Score,
		})
		total += count
	}

	if len(sources) == 0 {
		// Every candidate was over budget on its own.
		logger.Debug("Token budget %d too small for any retrieved chunk", b.tokenBudget)
		return &domain.RAGContext{Empty: true}, nil
	}

	logger.Debug("Context assembled: %d chunks, %d tokens of %d budget", len(sources), total, b.tokenBudget)

	return &domain.RAGContext{
		Prompt:     strings.TrimRight(sb.String(), "\n"),
		Sources:    sources,
		TokenCount: total,
	}, nil
}

// documentName resolves a document's display name, memoised per build.
// A deleted document falls back to its ID rather than failing the answer.
func (b *ContextBuilder) documentName(ctx context.Context, cache map[string]string, documentID string) (string, error) {
	if name, ok := cache[documentID]; ok {
		return name, nil
	}

	doc, err := b.docStore.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			cache[documentID] = documentID
			return documentID, nil
		}
		return "", fmt.Errorf("get document %s: %w", documentID, err)
	}

	cache[documentID] = doc.Name
	return doc.Name, nil
}
