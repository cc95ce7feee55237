package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Dispatch_RunsTask(t *testing.T) {
	p := New(2)
	defer p.Close()

	var ran atomic.Bool
	err := p.Dispatch(context.Background(), "doc-1", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)

	p.Wait()
	assert.True(t, ran.Load())
}

func TestPool_Dispatch_SingleFlightPerDocument(t *testing.T) {
	p := New(2)
	defer p.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	err := p.Dispatch(context.Background(), "doc-1", func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	// Second dispatch for the same document while the first is active.
	err = p.Dispatch(context.Background(), "doc-1", func(context.Context) error {
		runs.Add(1)
		return nil
	})
	require.NoError(t, err)

	close(release)
	p.Wait()
	assert.Equal(t, int32(1), runs.Load())
}

func TestPool_Dispatch_DifferentDocumentsRunConcurrently(t *testing.T) {
	p := New(2)
	defer p.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	barrier := make(chan struct{})

	for _, id := range []string{"doc-1", "doc-2"} {
		err := p.Dispatch(context.Background(), id, func(context.Context) error {
			wg.Done()
			<-barrier
			return nil
		})
		require.NoError(t, err)
	}

	// Both tasks must be running at once to get past this.
	waited := make(chan struct{})
	go func() { wg.Wait(); close(waited) }()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("tasks did not run concurrently")
	}

	close(barrier)
	p.Wait()
}

func TestPool_Dispatch_SaturatedPoolRunsSynchronously(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	started := make(chan struct{})

	err := p.Dispatch(context.Background(), "doc-1", func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	require.NoError(t, err)
	<-started

	// The only slot is busy: this dispatch runs inline on the caller and
	// has finished by the time Dispatch returns.
	var ran atomic.Bool
	err = p.Dispatch(context.Background(), "doc-2", func(context.Context) error {
		ran.Store(true)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran.Load())

	close(release)
	p.Wait()
}

func TestPool_Dispatch_AfterClose(t *testing.T) {
	p := New(1)
	require.NoError(t, p.Close())

	err := p.Dispatch(context.Background(), "doc-1", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPool_Dispatch_SurvivesCallerCancellation(t *testing.T) {
	p := New(1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	observed := make(chan error, 1)

	err := p.Dispatch(ctx, "doc-1", func(taskCtx context.Context) error {
		// The caller's context is detached for asynchronous runs.
		time.Sleep(20 * time.Millisecond)
		observed <- taskCtx.Err()
		return nil
	})
	require.NoError(t, err)
	cancel()

	p.Wait()
	assert.NoError(t, <-observed)
}

func TestPool_Dispatch_SameDocumentAgainAfterCompletion(t *testing.T) {
	p := New(1)
	defer p.Close()

	var runs atomic.Int32
	task := func(context.Context) error {
		runs.Add(1)
		return nil
	}

	require.NoError(t, p.Dispatch(context.Background(), "doc-1", task))
	p.Wait()
	require.NoError(t, p.Dispatch(context.Background(), "doc-1", task))
	p.Wait()

	assert.Equal(t, int32(2), runs.Load())
}
