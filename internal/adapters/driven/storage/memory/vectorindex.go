package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is an in-memory implementation of driven.VectorIndex with a
// linear-scan cosine search. Owner-scoped searches resolve document ownership
// and status through the document store.
type VectorIndex struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
	docs   *DocumentStore
}

// NewVectorIndex creates a new in-memory vector index. docs may be nil, in
// which case owner-scoped searches return no results.
func NewVectorIndex(docs *DocumentStore) *VectorIndex {
	return &VectorIndex{
		chunks: make(map[string]domain.Chunk),
		docs:   docs,
	}
}

// Add inserts a chunk and its embedding into the index.
func (v *VectorIndex) Add(_ context.Context, chunk domain.Chunk) error {
	if len(chunk.Embedding) == 0 {
		return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, chunk.ID)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunks[chunk.ID] = chunk
	return nil
}

// Search returns up to k chunks within scope ranked by descending cosine
// similarity, ties broken by ascending position.
func (v *VectorIndex) Search(ctx context.Context, query []float32, scope domain.SearchScope, k int, minScore float64) ([]domain.RetrievalResult, error) {
	if scope.DocumentID == "" && scope.OwnerID == "" {
		return []domain.RetrievalResult{}, nil
	}
	if k <= 0 {
		return []domain.RetrievalResult{}, nil
	}

	v.mu.RLock()
	candidates := make([]domain.Chunk, 0, len(v.chunks))
	for _, chunk := range v.chunks {
		candidates = append(candidates, chunk)
	}
	v.mu.RUnlock()

	results := []domain.RetrievalResult{}
	for _, chunk := range candidates {
		ok, err := v.inScope(ctx, chunk, scope)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		score, err := cosineSimilarity(query, chunk.Embedding)
		if err != nil {
			return nil, fmt.Errorf("scoring chunk %s: %w", chunk.ID, err)
		}
		if score < minScore {
			continue
		}
		results = append(results, domain.RetrievalResult{Chunk: chunk, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].Chunk.Position != results[j].Chunk.Position {
			return results[i].Chunk.Position < results[j].Chunk.Position
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// inScope reports whether the chunk belongs to the search scope.
func (v *VectorIndex) inScope(ctx context.Context, chunk domain.Chunk, scope domain.SearchScope) (bool, error) {
	if scope.DocumentID != "" {
		return chunk.DocumentID == scope.DocumentID, nil
	}
	if v.docs == nil {
		return false, nil
	}
	doc, err := v.docs.GetDocument(ctx, chunk.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return doc.OwnerID == scope.OwnerID && doc.Status == domain.StatusCompleted, nil
}

// DeleteDocument removes all vectors belonging to a document.
func (v *VectorIndex) DeleteDocument(_ context.Context, documentID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, chunk := range v.chunks {
		if chunk.DocumentID == documentID {
			delete(v.chunks, id)
		}
	}
	return nil
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
}

// Len returns the number of indexed vectors.
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.chunks)
}

// cosineSimilarity computes the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", domain.ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
