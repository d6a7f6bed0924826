package parallel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewExecutor_Default(t *testing.T) {
	assert.Equal(t, DefaultWorkers(), NewExecutor(0).Workers())
	assert.Equal(t, 3, NewExecutor(3).Workers())
}

func TestMap_CollectsValuesAndErrors(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	boom := errors.New("boom")

	var last atomic.Int64
	outcomes, err := Map(context.Background(), NewExecutor(2), items,
		func(_ context.Context, n int) (int, error) {
			if n == 3 {
				return 0, boom
			}
			return n * n, nil
		},
		func(done int) { last.Store(int64(done)) },
	)
	require.NoError(t, err)
	require.Len(t, outcomes, 5)

	for i, o := range outcomes {
		assert.True(t, o.Ran)
		assert.Equal(t, i, o.Index)
	}
	assert.Equal(t, 16, outcomes[3].Value)
	assert.ErrorIs(t, outcomes[2].Err, boom)
	assert.Equal(t, int64(5), last.Load())
}

func TestMap_RespectsConcurrencyLimit(t *testing.T) {
	var current, peak atomic.Int64
	items := make([]int, 20)

	_, err := Map(context.Background(), NewExecutor(3), items,
		func(_ context.Context, _ int) (struct{}, error) {
			n := current.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			current.Add(-1)
			return struct{}{}, nil
		}, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(3))
}

func TestMap_StartsNoMoreGoroutinesThanWorkers(t *testing.T) {
	const workers = 2
	items := make([]int, 200)
	release := make(chan struct{})
	started := make(chan struct{}, len(items))

	baseline := runtime.NumGoroutine()
	result := make(chan error, 1)
	go func() {
		_, err := Map(context.Background(), NewExecutor(workers), items,
			func(_ context.Context, _ int) (int, error) {
				started <- struct{}{}
				<-release
				return 0, nil
			}, nil)
		result <- err
	}()

	for range workers {
		<-started
	}
	// The Map caller plus one goroutine per busy worker.
	assert.LessOrEqual(t, runtime.NumGoroutine()-baseline, workers+1)
	assert.Empty(t, started, "no item starts while every worker is busy")

	close(release)
	require.NoError(t, <-result)
	assert.Len(t, started, len(items)-workers)
}

func TestMap_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	items := make([]int, 50)

	outcomes, err := Map(ctx, NewExecutor(1), items,
		func(_ context.Context, _ int) (int, error) {
			cancel()
			return 1, nil
		}, nil)
	require.ErrorIs(t, err, context.Canceled)

	ran := 0
	for _, o := range outcomes {
		if o.Ran {
			ran++
		}
	}
	assert.Less(t, ran, len(items))
}

func TestMap_Empty(t *testing.T) {
	outcomes, err := Map(context.Background(), NewExecutor(2), []string{},
		func(context.Context, string) (int, error) { return 0, nil }, nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestProgressInterval(t *testing.T) {
	tests := []struct {
		total, want int
	}{
		{0, 1},
		{5, 1},
		{50, 5},
		{1000, 100},
		{50000, 100},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressInterval(tt.total))
		})
	}
}

func TestSyncWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewSyncWriter(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = fmt.Fprintln(w, "line")
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, bytes.Count(buf.Bytes(), []byte("line\n")))
}
