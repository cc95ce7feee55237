package domain

import "time"

// DocumentStatus tracks a document through the indexing pipeline.
type DocumentStatus string

// Document lifecycle states. Completed and failed are terminal.
const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// Valid reports whether s is a known document status.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the status is an end state of the pipeline.
func (s DocumentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Document represents an uploaded document moving through the indexing
// pipeline. It is created on upload with StatusPending and mutated only by
// the pipeline until it reaches a terminal status.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// OwnerID identifies the user the document belongs to.
	OwnerID string

	// Name is the human-readable display name (e.g. "policy.pdf").
	Name string

	// ContentHash is the SHA-256 of the raw extracted text.
	// Used to detect duplicate uploads before re-indexing.
	ContentHash string

	// Status is the pipeline lifecycle state.
	Status DocumentStatus

	// NumChunks is the number of chunks persisted for this document.
	// Zero until indexing completes.
	NumChunks int

	// EmbeddingModel records which model produced the stored vectors.
	EmbeddingModel string

	// ErrorDetail holds the human-readable cause when Status is failed.
	ErrorDetail string

	// CreatedAt is when the document was uploaded.
	CreatedAt time.Time

	// UpdatedAt is when the document was last modified.
	UpdatedAt time.Time

	// ProcessedAt is when indexing reached a terminal state.
	ProcessedAt *time.Time
}

// Chunk is a contiguous slice of a document's text, the unit of embedding
// and retrieval. Chunk boundaries within one document are monotonically
// increasing by Position and overlap by a configured character count.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Content is the chunk text.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// TokenCount is the estimated token count, computed once at indexing
	// time and never recalculated at query time.
	TokenCount int

	// Embedding is the fixed-dimension vector representation.
	Embedding []float32
}
