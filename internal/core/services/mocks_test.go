package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/veritas-labs/veritas-rag/internal/core/domain"
	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
)

// fakeEmbeddingService is a scriptable driven.EmbeddingService.
type fakeEmbeddingService struct {
	mu         sync.Mutex
	dims       int
	model      string
	embedCalls int
	batchCalls [][]string

	// failFirst makes the first N batch calls fail with a transient error.
	failFirst int
	// failAlways makes every batch call fail.
	failAlways bool
	// returnDims overrides the dimension of returned vectors when non-zero.
	returnDims int
}

var _ driven.EmbeddingService = (*fakeEmbeddingService)(nil)

func newFakeEmbeddingService(dims int) *fakeEmbeddingService {
	return &fakeEmbeddingService{dims: dims, model: "fake-embed"}
}

func (f *fakeEmbeddingService) vector(text string) []float32 {
	dims := f.dims
	if f.returnDims > 0 {
		dims = f.returnDims
	}
	v := make([]float32, dims)
	if dims > 0 {
		v[0] = float32(len(text))
		if dims > 1 {
			v[1] = 1
		}
	}
	return v
}

func (f *fakeEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.failAlways {
		return nil, errors.New("provider down")
	}
	return f.vector(text), nil
}

func (f *fakeEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls = append(f.batchCalls, texts)
	if f.failAlways {
		return nil, errors.New("provider down")
	}
	if f.failFirst > 0 {
		f.failFirst--
		return nil, errors.New("transient provider error")
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = f.vector(t)
	}
	return vectors, nil
}

func (f *fakeEmbeddingService) Dimensions() int            { return f.dims }
func (f *fakeEmbeddingService) ModelName() string          { return f.model }
func (f *fakeEmbeddingService) Ping(context.Context) error { return nil }
func (f *fakeEmbeddingService) Close() error               { return nil }

func (f *fakeEmbeddingService) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batchCalls)
}

func (f *fakeEmbeddingService) embedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.embedCalls
}

// fakeCache is an in-memory driven.EmbeddingCache that records Set calls.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	sets    int
}

var _ driven.EmbeddingCache = (*fakeCache)(nil)

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]float32)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *fakeCache) Set(_ context.Context, key string, vector []float32, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = vector
	c.sets++
}

// fakeGenerationService streams a scripted sequence of deltas.
type fakeGenerationService struct {
	mu        sync.Mutex
	deltas    []domain.StreamDelta
	streamErr error
	requests  [][]driven.ChatMessage

	// gate, when non-nil, is waited on before each delta is sent.
	gate chan struct{}
	// exited, when non-nil, is closed when the streaming goroutine returns.
	exited chan struct{}
}

var _ driven.GenerationService = (*fakeGenerationService)(nil)

func newFakeGenerationService(deltas ...domain.StreamDelta) *fakeGenerationService {
	return &fakeGenerationService{deltas: deltas}
}

func (f *fakeGenerationService) Stream(_ context.Context, messages []driven.ChatMessage, _ driven.GenerateOptions) (<-chan domain.StreamDelta, error) {
	f.mu.Lock()
	f.requests = append(f.requests, messages)
	err := f.streamErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make(chan domain.StreamDelta)
	go func() {
		defer close(out)
		if f.exited != nil {
			defer close(f.exited)
		}
		for _, d := range f.deltas {
			if f.gate != nil {
				<-f.gate
			}
			out <- d
		}
	}()
	return out, nil
}

func (f *fakeGenerationService) ModelName() string          { return "fake-llm" }
func (f *fakeGenerationService) Ping(context.Context) error { return nil }
func (f *fakeGenerationService) Close() error               { return nil }

func (f *fakeGenerationService) lastRequest() []driven.ChatMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

// syncDispatcher runs dispatched tasks inline on the caller.
type syncDispatcher struct {
	mu   sync.Mutex
	runs int
}

var _ driven.Dispatcher = (*syncDispatcher)(nil)

func (d *syncDispatcher) Dispatch(ctx context.Context, _ string, task driven.IndexingTask) error {
	d.mu.Lock()
	d.runs++
	d.mu.Unlock()
	_ = task(ctx)
	return nil
}

func (d *syncDispatcher) Wait()        {}
func (d *syncDispatcher) Close() error { return nil }

func (d *syncDispatcher) runCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runs
}
