package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	chunks    map[string][]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[string]domain.Document),
		chunks:    make(map[string][]domain.Chunk),
	}
}

// SaveDocument stores or updates a document.
func (s *DocumentStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	s.documents[doc.ID] = *doc
	return nil
}

// GetDocument retrieves a document by ID.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// GetDocumentByHash retrieves an owner's document by content hash.
func (s *DocumentStore) GetDocumentByHash(_ context.Context, ownerID, hash string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.OwnerID != ownerID || doc.ContentHash != hash {
			continue
		}
		if found == nil || doc.CreatedAt.After(found.CreatedAt) {
			found = &doc
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	return found, nil
}

// ListDocuments returns all documents for an owner, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, ownerID string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.Document
	for id := range s.documents {
		doc := s.documents[id]
		if doc.OwnerID == ownerID {
			result = append(result, doc)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// MarkProcessing atomically claims the document for an indexing run.
func (s *DocumentStore) MarkProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Status == domain.StatusProcessing {
		return domain.ErrAlreadyProcessing
	}
	doc.Status = domain.StatusProcessing
	doc.ErrorDetail = ""
	doc.UpdatedAt = time.Now().UTC()
	s.documents[id] = doc
	return nil
}

// MarkCompleted records a successful indexing run.
func (s *DocumentStore) MarkCompleted(_ context.Context, id string, numChunks int, embeddingModel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	doc.Status = domain.StatusCompleted
	doc.NumChunks = numChunks
	doc.EmbeddingModel = embeddingModel
	doc.ErrorDetail = ""
	doc.UpdatedAt = now
	doc.ProcessedAt = &now
	s.documents[id] = doc
	return nil
}

// MarkFailed records a failed indexing run.
func (s *DocumentStore) MarkFailed(_ context.Context, id, errorDetail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	doc.Status = domain.StatusFailed
	doc.ErrorDetail = errorDetail
	doc.UpdatedAt = now
	doc.ProcessedAt = &now
	s.documents[id] = doc
	return nil
}

// SaveChunks stores chunks for a document.
func (s *DocumentStore) SaveChunks(_ context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	docID := chunks[0].DocumentID
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	s.chunks[docID] = stored
	return nil
}

// GetChunks retrieves all chunks for a document ordered by position.
func (s *DocumentStore) GetChunks(_ context.Context, documentID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks, ok := s.chunks[documentID]
	if !ok {
		return nil, nil
	}
	result := make([]domain.Chunk, len(chunks))
	copy(result, chunks)
	sort.Slice(result, func(i, j int) bool { return result[i].Position < result[j].Position })
	return result, nil
}

// DeleteDocument removes a document and its chunks.
func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.documents, id)
	delete(s.chunks, id)
	return nil
}
