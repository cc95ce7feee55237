package driven

import "context"

// IndexingTask is one unit of indexing work for a single document.
type IndexingTask func(ctx context.Context) error

// Dispatcher runs indexing units asynchronously with at-most-one concurrent
// run per document. When no worker is available the task is executed
// synchronously rather than queued indefinitely.
type Dispatcher interface {
	// Dispatch schedules the task for the document. A dispatch while a run
	// for the same document is active is a no-op and returns nil.
	Dispatch(ctx context.Context, documentID string, task IndexingTask) error

	// Wait blocks until all in-flight tasks have finished.
	Wait()

	// Close stops accepting tasks and waits for in-flight ones.
	Close() error
}
