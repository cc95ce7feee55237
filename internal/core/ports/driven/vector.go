package driven

import (
	"context"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
)

// VectorIndex stores chunk vectors and answers scoped nearest-neighbour
// queries. Insertion is append-only per document; document deletion cascades
// to all of its chunks and vectors.
type VectorIndex interface {
	// Add inserts a chunk and its embedding into the index.
	Add(ctx context.Context, chunk domain.Chunk) error

	// Search returns up to k chunks within scope ranked by descending
	// cosine similarity, ties broken by ascending chunk position. Results
	// below minScore are excluded. An empty scope yields an empty result,
	// not an error.
	Search(ctx context.Context, query []float32, scope domain.SearchScope, k int, minScore float64) ([]domain.RetrievalResult, error)

	// DeleteDocument removes all vectors belonging to a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Close releases resources.
	Close() error
}
