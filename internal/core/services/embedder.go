package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
	"github.com/veritas-labs/veritas-rag/internal/logger"
)

// batchInterval paces embedding batches so a local provider is not
// overwhelmed during large indexing runs.
const batchInterval = 200 * time.Millisecond

// Embedder wraps an embedding provider with batching, retry, dimension
// validation and a query-side result cache. Indexing goes through
// EmbedChunks; the query path goes through EmbedQuery.
type Embedder struct {
	svc   driven.EmbeddingService
	cache driven.EmbeddingCache

	batchSize   int
	maxRetries  int
	retryDelay  time.Duration
	concurrency int
	cacheTTL    time.Duration

	limiter *rate.Limiter
}

// NewEmbedder creates an embedder over the given provider. The cache is
// optional; when nil every query embedding costs a provider call.
func NewEmbedder(
	svc driven.EmbeddingService,
	cache driven.EmbeddingCache,
	indexing domain.IndexingSettings,
	query domain.QuerySettings,
) *Embedder {
	if indexing.BatchSize <= 0 {
		indexing.BatchSize = 10
	}
	if indexing.MaxRetries <= 0 {
		indexing.MaxRetries = 3
	}
	if indexing.RetryDelay <= 0 {
		indexing.RetryDelay = time.Second
	}
	if indexing.Concurrency <= 0 {
		indexing.Concurrency = 3
	}
	if query.CacheTTL <= 0 {
		query.CacheTTL = time.Hour
	}

	return &Embedder{
		svc:         svc,
		cache:       cache,
		batchSize:   indexing.BatchSize,
		maxRetries:  indexing.MaxRetries,
		retryDelay:  indexing.RetryDelay,
		concurrency: indexing.Concurrency,
		cacheTTL:    query.CacheTTL,
		limiter:     rate.NewLimiter(rate.Every(batchInterval), 1),
	}
}

// ModelName returns the underlying provider's model name.
func (e *Embedder) ModelName() string {
	return e.svc.ModelName()
}

// EmbedChunks embeds texts in fixed-size batches with bounded concurrency.
// Results are returned in input order regardless of batch completion order.
// A batch that keeps failing after all retries fails the whole call; the
// caller marks the owning document failed.
func (e *Embedder) EmbedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	if e.svc == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		texts []string
	}

	var batches []batch
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	logger.Debug("Embedding %d chunks in %d batches of up to %d", len(texts), len(batches), e.batchSize)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	vectors := make([][]float32, len(texts))
	sem := make(chan struct{}, e.concurrency)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for _, b := range batches {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			mu.Lock()
			defer mu.Unlock()
			if firstErr != nil {
				return nil, firstErr
			}
			return nil, ctx.Err()
		}

		wg.Add(1)
		go func(b batch) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := e.embedBatchWithRetry(ctx, b.texts)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}
			copy(vectors[b.start:], result)
		}(b)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return vectors, nil
}

// embedBatchWithRetry calls the provider for one batch, retrying transient
// failures with exponential backoff. Dimension mismatches are configuration
// errors and abort immediately.
func (e *Embedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error

	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		result, err := e.svc.EmbedBatch(ctx, texts)
		if err == nil {
			if err := e.validateDimensions(result); err != nil {
				return nil, err
			}
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		logger.Warn("Embedding batch attempt %d/%d failed: %v", attempt, e.maxRetries, err)

		if attempt < e.maxRetries {
			delay := e.retryDelay << (attempt - 1)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("%w: batch of %d chunks failed after %d attempts: %w",
		domain.ErrRetryExhausted, len(texts), e.maxRetries,
		fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, lastErr))
}

// EmbedQuery embeds a single question, consulting the TTL cache first.
// A cache hit returns the vector with no provider call; a miss computes,
// stores and returns it. Cache loss never changes the vector, only latency.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.svc == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	// Scoping the key by model keeps a model switch from serving stale vectors.
	key := e.svc.ModelName() + ":" + QueryCacheKey(text)

	if e.cache != nil {
		if vector, ok := e.cache.Get(ctx, key); ok {
			logger.Debug("Query embedding cache hit")
			return vector, nil
		}
	}

	vector, err := e.svc.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProvider, err)
	}

	if err := e.validateDimension(vector); err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Set(ctx, key, vector, e.cacheTTL)
	}

	return vector, nil
}

// validateDimensions checks every vector of a batch against the configured
// dimension.
func (e *Embedder) validateDimensions(vectors [][]float32) error {
	for _, v := range vectors {
		if err := e.validateDimension(v); err != nil {
			return err
		}
	}
	return nil
}

// validateDimension rejects any vector that does not match the provider's
// configured dimension. Never retried, never truncated or padded.
func (e *Embedder) validateDimension(vector []float32) error {
	want := e.svc.Dimensions()
	if want > 0 && len(vector) != want {
		err := fmt.Errorf("%w: provider returned %d dimensions, configured %d (model %q)",
			domain.ErrDimensionMismatch, len(vector), want, e.svc.ModelName())
		logger.Error("%v", err)
		return err
	}
	return nil
}

// IsConfigurationError reports whether err is fatal misconfiguration rather
// than a transient provider fault.
func IsConfigurationError(err error) bool {
	return errors.Is(err, domain.ErrDimensionMismatch) || errors.Is(err, domain.ErrModelMissing)
}

// QueryCacheKey fingerprints a question for the embedding cache: lowercase,
// whitespace collapsed, then hashed so the key length is bounded.
func QueryCacheKey(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "qe:" + hex.EncodeToString(sum[:])
}
