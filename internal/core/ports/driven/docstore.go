package driven

import (
	"context"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

// DocumentStore persists documents and their chunks. The status column is
// the concurrency guard for the indexing pipeline: MarkProcessing performs
// the atomic pending→processing transition so at most one indexing run is
// active per document.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByHash retrieves an owner's document by content hash.
	// Returns domain.ErrNotFound if no document matches.
	GetDocumentByHash(ctx context.Context, ownerID, hash string) (*domain.Document, error)

	// ListDocuments returns all documents for an owner, newest first.
	ListDocuments(ctx context.Context, ownerID string) ([]domain.Document, error)

	// MarkProcessing atomically transitions the document from pending (or
	// failed, for a reindex) to processing. Returns
	// domain.ErrAlreadyProcessing when a run is already active.
	MarkProcessing(ctx context.Context, id string) error

	// MarkCompleted records a successful indexing run.
	MarkCompleted(ctx context.Context, id string, numChunks int, embeddingModel string) error

	// MarkFailed records a failed indexing run with a human-readable cause.
	MarkFailed(ctx context.Context, id, errorDetail string) error

	// SaveChunks stores a document's chunks with their embeddings.
	SaveChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetChunks retrieves all chunks for a document ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// DeleteDocument removes a document; deletion cascades to its chunks.
	DeleteDocument(ctx context.Context, id string) error
}
