package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.Enqueue(Job{ID: "1"})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSingleWorkerRunsInOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
		wg    sync.WaitGroup
	)
	wg.Add(3)
	q := NewQueue("ordered", func(ctx context.Context, job Job) error {
		defer wg.Done()
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	wg.Wait()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRetryAndNoRetry(t *testing.T) {
	var retried, single int32
	done := make(chan struct{})
	q := NewQueue("retry", func(ctx context.Context, job Job) error {
		if job.NoRetry {
			atomic.AddInt32(&single, 1)
			return errors.New("boom")
		}
		if atomic.AddInt32(&retried, 1) == 2 {
			close(done)
			return nil
		}
		return errors.New("transient")
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "once", NoRetry: true}))
	require.NoError(t, q.Enqueue(Job{ID: "twice"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&single))
	assert.Equal(t, int32(2), atomic.LoadInt32(&retried))
}
