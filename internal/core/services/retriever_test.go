package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas-rag/internal/adapters/driven/storage/memory"
	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

func retrieverFixture(t *testing.T) (*Retriever, *memory.DocumentStore, *memory.VectorIndex) {
	t.Helper()
	docs := memory.NewDocumentStore()
	index := memory.NewVectorIndex(docs)
	embedder := NewEmbedder(newFakeEmbeddingService(4), nil, testIndexingSettings(), testQuerySettings())
	return NewRetriever(embedder, index, testQuerySettings()), docs, index
}

func TestRetriever_Retrieve_EmptyQuestion(t *testing.T) {
	r, _, _ := retrieverFixture(t)

	_, err := r.Retrieve(context.Background(), "   ", domain.SearchScope{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetriever_Retrieve_EmptyCorpus(t *testing.T) {
	r, _, _ := retrieverFixture(t)

	results, err := r.Retrieve(context.Background(), "a question", domain.SearchScope{OwnerID: "owner-1"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_Retrieve_DocumentScope(t *testing.T) {
	r, docs, index := retrieverFixture(t)
	ctx := context.Background()

	require.NoError(t, docs.SaveDocument(ctx, &domain.Document{
		ID: "doc-1", OwnerID: "owner-1", Name: "a.txt", Status: domain.StatusCompleted,
	}))
	require.NoError(t, index.Add(ctx, domain.Chunk{
		ID: "c-1", DocumentID: "doc-1", Content: "in scope", Position: 0,
		Embedding: []float32{10, 1, 0, 0},
	}))
	require.NoError(t, index.Add(ctx, domain.Chunk{
		ID: "c-2", DocumentID: "doc-2", Content: "out of scope", Position: 0,
		Embedding: []float32{10, 1, 0, 0},
	}))

	results, err := r.Retrieve(ctx, "a question", domain.SearchScope{DocumentID: "doc-1"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "c-1", results[0].Chunk.ID)
	assert.Greater(t, results[0].Score, 0.3)
}
