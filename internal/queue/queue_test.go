package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]("test", 3)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Offer(i))
	}
	for i := 1; i <= 3; i++ {
		v, err := q.Receive(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
}

func TestQueue_OfferFullDrops(t *testing.T) {
	q := New[string]("out", 1)

	require.NoError(t, q.Offer("a"))
	err := q.Offer("b")
	assert.ErrorIs(t, err, ErrQueueFull)

	stats := q.Stats()
	assert.Equal(t, uint64(2), stats.Offered)
	assert.Equal(t, uint64(1), stats.Accepted)
	assert.Equal(t, uint64(1), stats.Dropped)
	assert.Equal(t, 1, q.Len())
}

func TestQueue_CloseStopsReceiveWithoutDraining(t *testing.T) {
	q := New[int]("out", 4)
	require.NoError(t, q.Offer(1))
	require.NoError(t, q.Offer(2))

	q.Close()
	q.Close() // 幂等

	_, err := q.Receive(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)

	assert.ErrorIs(t, q.Offer(3), ErrQueueClosed)
}

func TestQueue_ReceiveUnblocksOnClose(t *testing.T) {
	q := New[int]("out", 1)

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Receive(context.Background())
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("Receive did not return after Close")
	}
}

func TestQueue_ReceiveHonoursContext(t *testing.T) {
	q := New[int]("cmd", 1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Receive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentOfferAndClose(t *testing.T) {
	q := New[int]("out", 8)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = q.Offer(n*100 + j)
			}
		}(i)
	}
	q.Close()
	wg.Wait()

	stats := q.Stats()
	assert.Equal(t, uint64(800), stats.Offered)
	assert.Equal(t, stats.Offered, stats.Accepted+stats.Dropped)
}

func TestNew_MinimumCapacity(t *testing.T) {
	q := New[int]("tiny", 0)
	assert.Equal(t, 1, q.Cap())
	assert.Equal(t, "tiny", q.Name())
}
