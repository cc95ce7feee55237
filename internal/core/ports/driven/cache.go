package driven

import (
	"context"
	"time"
)

// EmbeddingCache is a best-effort TTL cache for query embeddings.
// Entries may be evicted or expire at any time; a miss only costs an extra
// provider call, never a different answer. Implementations must be safe for
// concurrent use.
type EmbeddingCache interface {
	// Get returns the cached vector for key, if present and unexpired.
	Get(ctx context.Context, key string) ([]float32, bool)

	// Set stores a vector under key with the given time-to-live.
	Set(ctx context.Context, key string, vector []float32, ttl time.Duration)
}
