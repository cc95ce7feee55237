package driving

import (
	"context"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

// IngestionService accepts validated document text and drives the indexing
// pipeline: chunk, embed in batches, store vectors.
type IngestionService interface {
	// Ingest registers the document and dispatches an asynchronous
	// indexing run. When an owner already has a completed document with
	// the same content hash, the existing document is returned and no new
	// run is dispatched.
	Ingest(ctx context.Context, ownerID, name, text string) (*domain.Document, error)

	// Reindex re-runs the pipeline for a failed document.
	Reindex(ctx context.Context, documentID string) error

	// Status returns the document's current pipeline state.
	Status(ctx context.Context, documentID string) (*domain.Document, error)

	// List returns all documents for an owner, newest first.
	List(ctx context.Context, ownerID string) ([]domain.Document, error)

	// Delete removes a document, its chunks and its vectors.
	Delete(ctx context.Context, documentID string) error
}
