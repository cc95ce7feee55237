package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyProcessing indicates an indexing run is already active for
	// the document. A second dispatch while processing is a no-op.
	ErrAlreadyProcessing = errors.New("document already processing")

	// ErrExtractionFailed indicates the uploaded source yielded no usable
	// text (e.g. an image-only PDF). Surfaced as document status=failed.
	ErrExtractionFailed = errors.New("text extraction failed")

	// ErrEmbeddingProvider indicates a transient embedding provider
	// failure (network, timeout). Retried up to the configured limit.
	ErrEmbeddingProvider = errors.New("embedding provider failure")

	// ErrRetryExhausted indicates a batch kept failing after all retries.
	// The owning document is marked failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrIndexFailure indicates a storage error on vector insert or search.
	ErrIndexFailure = errors.New("vector index failure")

	// ErrGenerationFailed indicates the generation provider errored
	// mid-stream. The partial answer is discarded, never persisted.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrDimensionMismatch indicates a returned vector does not match the
	// configured dimension. This is a fatal configuration error, never
	// retried and never silently truncated or padded.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrModelMissing indicates no model is configured for the requested
	// provider. Fatal configuration error.
	ErrModelMissing = errors.New("model not configured")

	// ErrNoRelevantContext signals that retrieval found no chunk above the
	// relevance threshold. The answer path decides whether to answer from
	// history alone or refuse.
	ErrNoRelevantContext = errors.New("no relevant context")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Indexing and retrieval are impossible without it.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationUnavailable indicates the generation service is not
	// configured. Questions cannot be answered without it.
	ErrGenerationUnavailable = errors.New("generation service unavailable")
)
