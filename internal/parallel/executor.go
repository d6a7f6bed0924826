package parallel

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers returns half of the available CPUs, at least one.
func DefaultWorkers() int {
	return max(runtime.NumCPU()/2, 1)
}

// Executor runs per-file work with a bounded number of concurrent workers.
type Executor struct {
	workers int64
}

// NewExecutor creates an executor. If workers <= 0, DefaultWorkers() is used.
func NewExecutor(workers int) *Executor {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Executor{workers: int64(workers)}
}

// Workers reports the concurrency limit.
func (e *Executor) Workers() int {
	return int(e.workers)
}

// Outcome is the result of processing one item.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
	// Ran is false when the item was never started because the context ended.
	Ran bool
}

// Map applies fn to every item with bounded parallelism. A failing item does
// not stop the others; its error is kept in its Outcome. Only cancellation of
// ctx ends the batch early, in which case ctx.Err() is returned alongside the
// outcomes gathered so far. onDone, when set, is called with the running
// completion count after every item.
func Map[T, R any](
	ctx context.Context,
	e *Executor,
	items []T,
	fn func(ctx context.Context, item T) (R, error),
	onDone func(done int),
) ([]Outcome[R], error) {
	outcomes := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return outcomes, nil
	}

	sem := semaphore.NewWeighted(e.workers)
	group, groupCtx := errgroup.WithContext(ctx)
	var done atomic.Int64

	for i := range outcomes {
		outcomes[i].Index = i
	}

	var acquireErr error
	for i, item := range items {
		// A worker slot is taken before the goroutine exists, so at most
		// e.workers goroutines are alive at once.
		if err := sem.Acquire(groupCtx, 1); err != nil {
			acquireErr = err
			break
		}
		group.Go(func() error {
			defer sem.Release(1)

			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			value, err := fn(groupCtx, item)
			outcomes[i].Value = value
			outcomes[i].Err = err
			outcomes[i].Ran = true

			n := done.Add(1)
			if onDone != nil {
				onDone(int(n))
			}
			return nil
		})
	}

	err := group.Wait()
	if ctx.Err() != nil {
		return outcomes, ctx.Err()
	}
	if err != nil {
		return outcomes, fmt.Errorf("parallel execution: %w", err)
	}
	if acquireErr != nil {
		return outcomes, fmt.Errorf("acquire worker: %w", acquireErr)
	}
	return outcomes, nil
}

// ProgressInterval returns how often (in completed items) progress should be
// reported: every tenth of the batch, at most every 100 items, at least 1.
func ProgressInterval(total int) int {
	return max(min(total/10, 100), 1)
}

// SyncWriter is a thread-safe writer that serializes writes from multiple goroutines.
type SyncWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewSyncWriter creates a new synchronized writer wrapping the given writer.
func NewSyncWriter(writer io.Writer) *SyncWriter {
	return &SyncWriter{writer: writer}
}

// Write writes data to the underlying writer with synchronization.
func (w *SyncWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.writer.Write(data)
	if err != nil {
		return n, fmt.Errorf("sync write: %w", err)
	}
	return n, nil
}
