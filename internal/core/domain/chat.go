package domain

import "time"

// SourceRef records which chunk contributed to a generated answer.
// The ordered source list is the citation trail for a ChatExchange.
type SourceRef struct {
	// DocumentID is the contributing document.
	DocumentID string

	// DocumentName is the display name at the time of the answer.
	DocumentName string

	// ChunkID is the contributing chunk.
	ChunkID string

	// Position is the chunk ordinal within its document.
	Position int

	// Score is the similarity score the chunk was retrieved with.
	Score float64
}

// ChatExchange is one completed question/answer pair plus the sources used
// to produce the answer. It is written once after generation finishes and
// never mutated.
type ChatExchange struct {
	// ID is the unique identifier for the exchange.
	ID string

	// OwnerID identifies the asking user.
	OwnerID string

	// DocumentID scopes the exchange to a single document, or is empty
	// for corpus-wide questions.
	DocumentID string

	// Question is the user's question as asked.
	Question string

	// Answer is the full concatenated generated answer.
	Answer string

	// Sources is the ordered provenance list for the answer.
	Sources []SourceRef

	// CreatedAt is when the exchange was persisted.
	CreatedAt time.Time
}

// StreamDelta is one increment of a streaming answer. A delta carries either
// answer text or a terminal error, never both. The stream is finite and not
// restartable.
type StreamDelta struct {
	// Content is the incremental answer text.
	Content string

	// Err terminates the stream when non-nil. Any partial answer
	// delivered before it must be discarded by consumers that persist.
	Err error

	// Done marks the final delta of a successful stream.
	Done bool
}
