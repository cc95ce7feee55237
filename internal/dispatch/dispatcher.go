// Package dispatch runs indexing units asynchronously on a bounded worker
// pool with at-most-one concurrent run per document. When every worker slot
// is busy the task runs synchronously on the caller instead of queueing,
// mirroring a job queue with an in-process fallback.
package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/veritas-labs/veritas-rag/internal/core/ports/driven"
	"github.com/veritas-labs/veritas-rag/internal/logger"
)

// Ensure Pool implements the interface.
var _ driven.Dispatcher = (*Pool)(nil)

// DefaultWorkers is the default worker pool size.
const DefaultWorkers = 2

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher closed")

// Pool is an in-process task dispatcher.
type Pool struct {
	mu     sync.Mutex
	active map[string]struct{}
	slots  chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// New creates a dispatcher with the given number of worker slots.
func New(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{
		active: make(map[string]struct{}),
		slots:  make(chan struct{}, workers),
	}
}

// Dispatch schedules the task for the document. A dispatch for a document
// whose run is still active is a no-op. When no worker slot is free the task
// runs synchronously on the calling goroutine.
func (p *Pool) Dispatch(ctx context.Context, documentID string, task driven.IndexingTask) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if _, running := p.active[documentID]; running {
		p.mu.Unlock()
		logger.Debug("Dispatch for %s ignored: run already active", documentID)
		return nil
	}
	p.active[documentID] = struct{}{}
	p.mu.Unlock()

	select {
	case p.slots <- struct{}{}:
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			defer func() { <-p.slots }()
			defer p.release(documentID)

			// The run must outlive the upload request that triggered it.
			p.run(context.WithoutCancel(ctx), documentID, task)
		}()
		return nil
	default:
		// Pool saturated: degrade to synchronous execution.
		logger.Debug("Worker pool saturated, running %s synchronously", documentID)
		defer p.release(documentID)
		p.run(ctx, documentID, task)
		return nil
	}
}

// run executes one task and logs its outcome. Task errors land on the
// document's status inside the task itself; here they are only logged.
func (p *Pool) run(ctx context.Context, documentID string, task driven.IndexingTask) {
	if err := task(ctx); err != nil {
		logger.Warn("Indexing run for %s finished with error: %v", documentID, err)
	}
}

// release clears the document's active marker.
func (p *Pool) release(documentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, documentID)
}

// Wait blocks until all in-flight asynchronous tasks have finished.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Close stops accepting tasks and waits for in-flight ones.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
	return nil
}
