package domain

// SearchScope restricts a similarity search to a slice of the corpus.
// Exactly one of DocumentID or OwnerID should be set: a document scope
// searches one document's chunks, an owner scope searches all chunks
// belonging to the owner's completed documents.
type SearchScope struct {
	// DocumentID scopes the search to a single document.
	DocumentID string

	// OwnerID scopes the search to all completed documents of a user.
	OwnerID string
}

// RetrievalResult is one ranked hit from the vector index. Results are
// ephemeral, never persisted.
type RetrievalResult struct {
	// Chunk is the matched chunk, hydrated with content and token count.
	Chunk Chunk

	// Score is the cosine similarity against the query vector.
	Score float64
}

// RAGContext is the prompt-ready context assembled from retrieved chunks,
// bounded by a token budget.
type RAGContext struct {
	// Prompt is the concatenated context text to inject into the prompt.
	Prompt string

	// Sources is the provenance record for every included chunk, in
	// inclusion order.
	Sources []SourceRef

	// TokenCount is the summed token estimate of the included chunks.
	TokenCount int

	// Empty signals that no chunk cleared the relevance threshold.
	// Callers must branch on this rather than checking Prompt == "".
	Empty bool
}
