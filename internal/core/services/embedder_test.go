package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

func testIndexingSettings() domain.IndexingSettings {
	return domain.IndexingSettings{
		BatchSize:   10,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
		Concurrency: 3,
	}
}

func testQuerySettings() domain.QuerySettings {
	return domain.QuerySettings{
		TopK:     10,
		MinScore: 0.3,
		CacheTTL: time.Hour,
	}
}

func TestEmbedder_EmbedChunks_Batching(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	e := NewEmbedder(svc, nil, testIndexingSettings(), testQuerySettings())

	texts := make([]string, 12)
	for i := range texts {
		texts[i] = fmt.Sprintf("chunk number %d", i)
	}

	vectors, err := e.EmbedChunks(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 12)

	// 12 chunks with batch size 10 means exactly two provider calls.
	assert.Equal(t, 2, svc.batchCount())

	// Results come back in input order.
	for i, v := range vectors {
		require.Len(t, v, 4)
		assert.Equal(t, float32(len(texts[i])), v[0], "vector %d out of order", i)
	}
}

func TestEmbedder_EmbedChunks_Empty(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	e := NewEmbedder(svc, nil, testIndexingSettings(), testQuerySettings())

	vectors, err := e.EmbedChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Zero(t, svc.batchCount())
}

func TestEmbedder_EmbedChunks_NoService(t *testing.T) {
	e := NewEmbedder(nil, nil, testIndexingSettings(), testQuerySettings())

	_, err := e.EmbedChunks(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestEmbedder_EmbedChunks_RetriesTransientFailure(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	svc.failFirst = 2 // first two attempts fail, third succeeds
	e := NewEmbedder(svc, nil, testIndexingSettings(), testQuerySettings())

	vectors, err := e.EmbedChunks(context.Background(), []string{"some chunk"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, svc.batchCount())
}

func TestEmbedder_EmbedChunks_RetryExhaustion(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	svc.failAlways = true
	e := NewEmbedder(svc, nil, testIndexingSettings(), testQuerySettings())

	_, err := e.EmbedChunks(context.Background(), []string{"some chunk"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRetryExhausted)
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
	assert.Equal(t, 3, svc.batchCount())
}

func TestEmbedder_EmbedChunks_DimensionMismatchFatal(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	svc.returnDims = 8 // provider returns the wrong width
	e := NewEmbedder(svc, nil, testIndexingSettings(), testQuerySettings())

	_, err := e.EmbedChunks(context.Background(), []string{"some chunk"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// Misconfiguration is never retried.
	assert.Equal(t, 1, svc.batchCount())
	assert.True(t, IsConfigurationError(err))
}

func TestEmbedder_EmbedQuery_CachesResult(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	cache := newFakeCache()
	e := NewEmbedder(svc, cache, testIndexingSettings(), testQuerySettings())

	first, err := e.EmbedQuery(context.Background(), "what is the policy?")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.embedCount())

	second, err := e.EmbedQuery(context.Background(), "what is the policy?")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Second call was served from the cache.
	assert.Equal(t, 1, svc.embedCount())
}

func TestEmbedder_EmbedQuery_NormalisedCacheKey(t *testing.T) {
	a := QueryCacheKey("What   is the Policy?")
	b := QueryCacheKey("what is the policy?")
	c := QueryCacheKey("a different question")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestEmbedder_EmbedQuery_ProviderError(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	svc.failAlways = true
	e := NewEmbedder(svc, newFakeCache(), testIndexingSettings(), testQuerySettings())

	_, err := e.EmbedQuery(context.Background(), "question")
	assert.ErrorIs(t, err, domain.ErrEmbeddingProvider)
}

func TestEmbedder_EmbedQuery_DimensionMismatch(t *testing.T) {
	svc := newFakeEmbeddingService(4)
	svc.returnDims = 2
	e := NewEmbedder(svc, nil, testIndexingSettings(), testQuerySettings())

	_, err := e.EmbedQuery(context.Background(), "question")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
