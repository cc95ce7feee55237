package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veritas-labs/veritas-rag/internal/chunker"
	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driving"
	"github.com/veritas-labs/veritas-rag/internal/extract"
	"github.com/veritas-labs/veritas-rag/internal/logger"
	"github.com/veritas-labs/veritas-rag/internal/tokens"
)

// Ensure Indexer implements the interface.
var _ driving.IngestionService = (*Indexer)(nil)

// maxErrorDetail bounds the failure cause stored on a document.
const maxErrorDetail = 10000

// Indexer drives the document indexing pipeline: validate, chunk, embed in
// batches, persist chunks and vectors. Runs are dispatched asynchronously
// with at most one active run per document; the document status column is
// the concurrency guard.
type Indexer struct {
	docStore    driven.DocumentStore
	vectorIndex driven.VectorIndex
	embedder    *Embedder
	splitter    *chunker.Splitter
	dispatcher  driven.Dispatcher

	// texts holds raw document text between Ingest and the async run.
	// The upload layer owns durable raw storage; this is transit only.
	texts textStash
}

// NewIndexer creates the indexing pipeline service.
func NewIndexer(
	docStore driven.DocumentStore,
	vectorIndex driven.VectorIndex,
	embedder *Embedder,
	splitter *chunker.Splitter,
	dispatcher driven.Dispatcher,
) *Indexer {
	return &Indexer{
		docStore:    docStore,
		vectorIndex: vectorIndex,
		embedder:    embedder,
		splitter:    splitter,
		dispatcher:  dispatcher,
	}
}

// Ingest registers the document and dispatches an asynchronous indexing run.
// A completed document with the same owner and content hash short-circuits:
// the existing document is returned and nothing is re-indexed.
func (x *Indexer) Ingest(ctx context.Context, ownerID, name, text string) (*domain.Document, error) {
	if ownerID == "" || name == "" {
		return nil, fmt.Errorf("%w: owner and name are required", domain.ErrInvalidInput)
	}

	hash := extract.ContentHash(text)

	existing, err := x.docStore.GetDocumentByHash(ctx, ownerID, hash)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if existing != nil && existing.Status == domain.StatusCompleted {
		logger.Info("Duplicate upload of %q matches document %s, skipping re-index", name, existing.ID)
		return existing, nil
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		Name:        name,
		ContentHash: hash,
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := x.docStore.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}

	x.texts.put(doc.ID, text)

	if err := x.dispatcher.Dispatch(ctx, doc.ID, func(taskCtx context.Context) error {
		return x.runIndexing(taskCtx, doc.ID)
	}); err != nil {
		return nil, fmt.Errorf("dispatch indexing: %w", err)
	}

	return doc, nil
}

// Reindex re-runs the pipeline for a failed or completed document, rebuilding
// its chunks and vectors from the stashed raw text.
func (x *Indexer) Reindex(ctx context.Context, documentID string) error {
	doc, err := x.docStore.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc.Status == domain.StatusProcessing {
		return domain.ErrAlreadyProcessing
	}
	if !x.texts.has(documentID) {
		return fmt.Errorf("%w: raw text for document %s is no longer available", domain.ErrInvalidInput, documentID)
	}

	return x.dispatcher.Dispatch(ctx, documentID, func(taskCtx context.Context) error {
		return x.runIndexing(taskCtx, documentID)
	})
}

// Status returns the document's current pipeline state.
func (x *Indexer) Status(ctx context.Context, documentID string) (*domain.Document, error) {
	return x.docStore.GetDocument(ctx, documentID)
}

// List returns all documents for an owner, newest first.
func (x *Indexer) List(ctx context.Context, ownerID string) ([]domain.Document, error) {
	return x.docStore.ListDocuments(ctx, ownerID)
}

// Delete removes a document, its chunks and its vectors.
func (x *Indexer) Delete(ctx context.Context, documentID string) error {
	if err := x.vectorIndex.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := x.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	x.texts.drop(documentID)
	return nil
}

// runIndexing is one indexing unit of work for a single document.
// Every failure path lands on the document's status so callers can observe
// it; the pipeline never drops a failure silently.
func (x *Indexer) runIndexing(ctx context.Context, documentID string) error {
	if err := x.docStore.MarkProcessing(ctx, documentID); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessing) {
			logger.Debug("Document %s already processing, dispatch is a no-op", documentID)
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}

	logger.Section("Indexing " + documentID)

	text, ok := x.texts.take(documentID)
	if !ok {
		return x.fail(ctx, documentID, fmt.Errorf("%w: raw text missing for document", domain.ErrExtractionFailed))
	}

	validated, err := extract.Validate(text)
	if err != nil {
		return x.fail(ctx, documentID, err)
	}

	pieces := extract.FilterChunks(x.splitter.Split(validated))
	if len(pieces) == 0 {
		return x.fail(ctx, documentID,
			fmt.Errorf("%w: no usable chunks after splitting", domain.ErrExtractionFailed))
	}
	logger.Info("Document %s split into %d chunks", documentID, len(pieces))

	vectors, err := x.embedder.EmbedChunks(ctx, pieces)
	if err != nil {
		return x.fail(ctx, documentID, err)
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Content:    content,
			Position:   i,
			TokenCount: tokens.Estimate(content),
			Embedding:  vectors[i],
		}
	}

	// A re-run replaces the previous chunk set; stale vectors go first so the
	// index never holds entries for chunks that no longer exist.
	if err := x.vectorIndex.DeleteDocument(ctx, documentID); err != nil {
		return x.fail(ctx, documentID, fmt.Errorf("%w: clear vectors: %w", domain.ErrIndexFailure, err))
	}

	if err := x.docStore.SaveChunks(ctx, chunks); err != nil {
		return x.fail(ctx, documentID, fmt.Errorf("%w: save chunks: %w", domain.ErrIndexFailure, err))
	}

	for i := range chunks {
		if err := x.vectorIndex.Add(ctx, chunks[i]); err != nil {
			return x.fail(ctx, documentID, fmt.Errorf("%w: add vector: %w", domain.ErrIndexFailure, err))
		}
	}

	if err := x.docStore.MarkCompleted(ctx, documentID, len(chunks), x.embedder.ModelName()); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}

	logger.Info("Document %s indexed: %d chunks", documentID, len(chunks))
	return nil
}

// fail records the failure cause on the document and returns the original
// error so the dispatcher can log it.
func (x *Indexer) fail(ctx context.Context, documentID string, cause error) error {
	detail := cause.Error()
	if len(detail) > maxErrorDetail {
		detail = detail[:maxErrorDetail] + "... (truncated)"
	}

	if IsConfigurationError(cause) {
		logger.Error("Document %s failed with configuration error: %v", documentID, cause)
	} else {
		logger.Warn("Document %s failed: %v", documentID, cause)
	}

	if err := x.docStore.MarkFailed(ctx, documentID, detail); err != nil {
		logger.Error("Failed to record failure for document %s: %v", documentID, err)
	}
	return cause
}
