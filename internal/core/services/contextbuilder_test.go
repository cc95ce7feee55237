package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas-rag/internal/adapters/driven/storage/memory"
	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

func builderFixture(t *testing.T, budget int) (*ContextBuilder, *memory.DocumentStore) {
	t.Helper()
	docs := memory.NewDocumentStore()
	b := NewContextBuilder(docs, domain.QuerySettings{TokenBudget: budget})
	return b, docs
}

func saveDoc(t *testing.T, docs *memory.DocumentStore, id, name string) {
	t.Helper()
	err := docs.SaveDocument(context.Background(), &domain.Document{
		ID:      id,
		OwnerID: "owner-1",
		Name:    name,
		Status:  domain.StatusCompleted,
	})
	require.NoError(t, err)
}

func result(docID, chunkID, content string, position, tokenCount int, score float64) domain.RetrievalResult {
	return domain.RetrievalResult{
		Chunk: domain.Chunk{
			ID:         chunkID,
			DocumentID: docID,
			Content:    content,
			Position:   position,
			TokenCount: tokenCount,
		},
		Score: score,
	}
}

func TestContextBuilder_Build_EmptyInputSignalsNoContext(t *testing.T) {
	b, _ := builderFixture(t, 4000)

	ragCtx, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, ragCtx.Empty)
	assert.Empty(t, ragCtx.Prompt)
	assert.Empty(t, ragCtx.Sources)
}

func TestContextBuilder_Build_IncludesChunksWithProvenance(t *testing.T) {
	b, docs := builderFixture(t, 4000)
	saveDoc(t, docs, "doc-1", "policy.pdf")

	results := []domain.RetrievalResult{
		result("doc-1", "chunk-1", "first chunk text", 0, 4, 0.9),
		result("doc-1", "chunk-2", "second chunk text", 1, 5, 0.8),
	}

	ragCtx, err := b.Build(context.Background(), results)
	require.NoError(t, err)
	assert.False(t, ragCtx.Empty)
	assert.Equal(t, 9, ragCtx.TokenCount)

	assert.Contains(t, ragCtx.Prompt, "[Source 1: policy.pdf]")
	assert.Contains(t, ragCtx.Prompt, "first chunk text")
	assert.Contains(t, ragCtx.Prompt, "[Source 2: policy.pdf]")
	assert.Contains(t, ragCtx.Prompt, "second chunk text")

	require.Len(t, ragCtx.Sources, 2)
	assert.Equal(t, "chunk-1", ragCtx.Sources[0].ChunkID)
	assert.Equal(t, "policy.pdf", ragCtx.Sources[0].DocumentName)
	assert.Equal(t, 0.9, ragCtx.Sources[0].Score)
	assert.Equal(t, 1, ragCtx.Sources[1].Position)
}

func TestContextBuilder_Build_StopsAtBudget(t *testing.T) {
	b, docs := builderFixture(t, 10)
	saveDoc(t, docs, "doc-1", "a.txt")

	results := []domain.RetrievalResult{
		result("doc-1", "chunk-1", "aaa", 0, 6, 0.9),
		result("doc-1", "chunk-2", "bbb", 1, 6, 0.8), // would exceed 10
		result("doc-1", "chunk-3", "ccc", 2, 2, 0.7),
	}

	ragCtx, err := b.Build(context.Background(), results)
	require.NoError(t, err)

	// Greedy in ranked order: the first over-budget chunk stops inclusion,
	// later smaller chunks are not pulled forward.
	require.Len(t, ragCtx.Sources, 1)
	assert.Equal(t, "chunk-1", ragCtx.Sources[0].ChunkID)
	assert.Equal(t, 6, ragCtx.TokenCount)
	assert.NotContains(t, ragCtx.Prompt, "ccc")
}

func TestContextBuilder_Build_AllOverBudgetSignalsNoContext(t *testing.T) {
	b, docs := builderFixture(t, 5)
	saveDoc(t, docs, "doc-1", "a.txt")

	results := []domain.RetrievalResult{
		result("doc-1", "chunk-1", strings.Repeat("x", 100), 0, 25, 0.9),
	}

	ragCtx, err := b.Build(context.Background(), results)
	require.NoError(t, err)
	assert.True(t, ragCtx.Empty)
}

func TestContextBuilder_Build_DeletedDocumentFallsBackToID(t *testing.T) {
	b, _ := builderFixture(t, 4000)

	results := []domain.RetrievalResult{
		result("gone-doc", "chunk-1", "orphan chunk", 0, 3, 0.9),
	}

	ragCtx, err := b.Build(context.Background(), results)
	require.NoError(t, err)
	require.Len(t, ragCtx.Sources, 1)
	assert.Equal(t, "gone-doc", ragCtx.Sources[0].DocumentName)
}

func TestContextBuilder_Build_UsesPrecomputedTokenCounts(t *testing.T) {
	b, docs := builderFixture(t, 100)
	saveDoc(t, docs, "doc-1", "a.txt")

	// TokenCount deliberately disagrees with the content length; the stored
	// count is what the budget consumes.
	results := []domain.RetrievalResult{
		result("doc-1", "chunk-1", strings.Repeat("x", 4000), 0, 50, 0.9),
		result("doc-1", "chunk-2", "tiny", 1, 50, 0.8),
	}

	ragCtx, err := b.Build(context.Background(), results)
	require.NoError(t, err)
	assert.Len(t, ragCtx.Sources, 2)
	assert.Equal(t, 100, ragCtx.TokenCount)
}
