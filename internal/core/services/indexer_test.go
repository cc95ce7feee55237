package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritas-labs/veritas-rag/internal/adapters/driven/storage/memory"
	"github.com/veritas-labs/veritas-rag/internal/chunker"
	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

type indexerFixture struct {
	indexer *Indexer
	docs    *memory.DocumentStore
	index   *memory.VectorIndex
	svc     *fakeEmbeddingService
	pool    *syncDispatcher
}

func newIndexerFixture(t *testing.T) *indexerFixture {
	t.Helper()

	docs := memory.NewDocumentStore()
	index := memory.NewVectorIndex(docs)
	svc := newFakeEmbeddingService(4)
	embedder := NewEmbedder(svc, nil, testIndexingSettings(), testQuerySettings())
	splitter := chunker.New(chunker.WithTargetSize(100), chunker.WithOverlap(10))
	pool := &syncDispatcher{}

	return &indexerFixture{
		indexer: NewIndexer(docs, index, embedder, splitter, pool),
		docs:    docs,
		index:   index,
		svc:     svc,
		pool:    pool,
	}
}

const sampleText = `The first paragraph of the sample document talks about things.

The second paragraph continues with more detail about the same things.

The third paragraph wraps up the discussion with a short conclusion.`

func TestIndexer_Ingest_HappyPath(t *testing.T) {
	f := newIndexerFixture(t)
	ctx := context.Background()

	doc, err := f.indexer.Ingest(ctx, "owner-1", "sample.txt", sampleText)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "owner-1", doc.OwnerID)
	assert.Equal(t, "sample.txt", doc.Name)
	assert.NotEmpty(t, doc.ContentHash)

	// The sync dispatcher ran the pipeline inline.
	final, err := f.indexer.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, "fake-embed", final.EmbeddingModel)
	assert.Greater(t, final.NumChunks, 0)
	assert.NotNil(t, final.ProcessedAt)
	assert.Empty(t, final.ErrorDetail)

	chunks, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, final.NumChunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
		assert.Greater(t, c.TokenCount, 0)
		assert.Len(t, c.Embedding, 4)
	}

	assert.Equal(t, final.NumChunks, f.index.Len())
}

func TestIndexer_Ingest_RequiresOwnerAndName(t *testing.T) {
	f := newIndexerFixture(t)

	_, err := f.indexer.Ingest(context.Background(), "", "name", sampleText)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.indexer.Ingest(context.Background(), "owner-1", "", sampleText)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIndexer_Ingest_DuplicateHashShortCircuits(t *testing.T) {
	f := newIndexerFixture(t)
	ctx := context.Background()

	first, err := f.indexer.Ingest(ctx, "owner-1", "sample.txt", sampleText)
	require.NoError(t, err)

	second, err := f.indexer.Ingest(ctx, "owner-1", "renamed.txt", sampleText)
	require.NoError(t, err)

	// Same content, same owner: the completed document is reused.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.pool.runCount())
}

func TestIndexer_Ingest_SameContentDifferentOwnerIndexesAgain(t *testing.T) {
	f := newIndexerFixture(t)
	ctx := context.Background()

	first, err := f.indexer.Ingest(ctx, "owner-1", "sample.txt", sampleText)
	require.NoError(t, err)

	second, err := f.indexer.Ingest(ctx, "owner-2", "sample.txt", sampleText)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.pool.runCount())
}

func TestIndexer_Ingest_EmptyTextFailsDocument(t *testing.T) {
	f := newIndexerFixture(t)
	ctx := context.Background()

	doc, err := f.indexer.Ingest(ctx, "owner-1", "scan.pdf", "   \n   ")
	require.NoError(t, err)

	final, err := f.indexer.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, final.ErrorDetail, "image-only PDF")
	assert.Zero(t, f.index.Len())
}

func TestIndexer_Ingest_EmbeddingFailureFailsWholeDocument(t *testing.T) {
	f := newIndexerFixture(t)
	f.svc.failAlways = true
	ctx := context.Background()

	doc, err := f.indexer.Ingest(ctx, "owner-1", "sample.txt", sampleText)
	require.NoError(t, err)

	final, err := f.indexer.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, final.Status)
	assert.Contains(t, final.ErrorDetail, "failed after 3 attempts")

	// No partial chunks or vectors survive a failed run.
	chunks, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	assert.Zero(t, f.index.Len())
}

func TestIndexer_Reindex_FailedDocumentRecovers(t *testing.T) {
	f := newIndexerFixture(t)
	f.svc.failAlways = true
	ctx := context.Background()

	doc, err := f.indexer.Ingest(ctx, "owner-1", "sample.txt", sampleText)
	require.NoError(t, err)

	failed, err := f.indexer.Status(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, failed.Status)

	// Provider recovers; a reindex succeeds.
	f.svc.failAlways = false
	require.NoError(t, f.indexer.Reindex(ctx, doc.ID))

	final, err := f.indexer.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Empty(t, final.ErrorDetail)
}

func TestIndexer_Reindex_RebuildsCompletedDocument(t *testing.T) {
	f := newIndexerFixture(t)
	ctx := context.Background()

	doc, err := f.indexer.Ingest(ctx, "owner-1", "sample.txt", sampleText)
	require.NoError(t, err)

	completed, err := f.indexer.Status(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, completed.Status)
	firstBatches := f.svc.batchCount()

	// An explicit reindex of a completed document re-runs the pipeline.
	require.NoError(t, f.indexer.Reindex(ctx, doc.ID))
	assert.Equal(t, 2, f.pool.runCount())
	assert.Greater(t, f.svc.batchCount(), firstBatches)

	final, err := f.indexer.Status(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, final.Status)
	assert.Equal(t, completed.NumChunks, final.NumChunks)

	// The rebuild replaces chunks and vectors instead of accumulating them.
	chunks, err := f.docs.GetChunks(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, final.NumChunks)
	assert.Equal(t, final.NumChunks, f.index.Len())
}

func TestIndexer_Reindex_UnknownDocument(t *testing.T) {
	f := newIndexerFixture(t)
	err := f.indexer.Reindex(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexer_Delete_RemovesChunksAndVectors(t *testing.T) {
	f := newIndexerFixture(t)
	ctx := context.Background()

	doc, err := f.indexer.Ingest(ctx, "owner-1", "sample.txt", sampleText)
	require.NoError(t, err)
	require.Greater(t, f.index.Len(), 0)

	require.NoError(t, f.indexer.Delete(ctx, doc.ID))

	_, err = f.indexer.Status(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.index.Len())
}

func TestIndexer_List_NewestFirst(t *testing.T) {
	f := newIndexerFixture(t)
	ctx := context.Background()

	_, err := f.indexer.Ingest(ctx, "owner-1", "first.txt", sampleText)
	require.NoError(t, err)
	_, err = f.indexer.Ingest(ctx, "owner-1", "second.txt", strings.ToUpper(sampleText))
	require.NoError(t, err)

	docs, err := f.indexer.List(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	docs2, err := f.indexer.List(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, docs2)
}
