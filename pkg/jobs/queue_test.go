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

func TestQueueDispatchesByType(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 2})
	var mu sync.Mutex
	seen := map[string]int{}
	q.Handle("a", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen["a"]++
		return nil
	})
	q.Handle("b", func(ctx context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		seen["b"]++
		return nil
	})
	q.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{Type: "a"}))
	}
	require.NoError(t, q.Enqueue(context.Background(), Job{Type: "b"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Type: "unknown"}))
	q.Stop()

	assert.Equal(t, 5, seen["a"])
	assert.Equal(t, 1, seen["b"])
	processed, failed := q.Stats()
	assert.EqualValues(t, 6, processed)
	assert.EqualValues(t, 1, failed)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	q := NewQueue("retry", QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	var attempts atomic.Int32
	done := make(chan struct{})
	q.Handle("flaky", func(ctx context.Context, job Job) error {
		if attempts.Add(1) < 3 {
			return errors.New("boom")
		}
		close(done)
		return nil
	})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(context.Background(), Job{ID: "1", Type: "flaky"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	q.Stop()
	assert.EqualValues(t, 3, attempts.Load())
}

func TestQueueRejectsWhenNotRunning(t *testing.T) {
	q := NewQueue("idle", QueueConfig{})
	err := q.Enqueue(context.Background(), Job{Type: "x"})
	assert.ErrorIs(t, err, ErrNotStarted)

	q.Start(context.Background())
	q.Stop()
	err = q.Enqueue(context.Background(), Job{Type: "x"})
	assert.ErrorIs(t, err, ErrNotStarted)
}
