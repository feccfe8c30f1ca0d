package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubmitBoundsConcurrency(t *testing.T) {
	pool := New(2)
	var inFlight, maxInFlight int64

	tasks := make([]func(ctx context.Context) error, 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			cur := atomic.AddInt64(&inFlight, 1)
			for {
				max := atomic.LoadInt64(&maxInFlight)
				if cur <= max || atomic.CompareAndSwapInt64(&maxInFlight, max, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
			return nil
		}
	}

	require.NoError(t, pool.Go(context.Background(), tasks))
	require.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(2))
}

func TestGoReturnsFirstError(t *testing.T) {
	pool := New(4)
	boom := errors.New("boom")
	tasks := []func(ctx context.Context) error{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error { return nil },
	}
	err := pool.Go(context.Background(), tasks)
	require.ErrorIs(t, err, boom)
}

func TestSubmitRespectsCancellation(t *testing.T) {
	pool := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	blocked := make(chan struct{})
	go func() {
		pool.Submit(context.Background(), func(ctx context.Context) error {
			close(blocked)
			time.Sleep(50 * time.Millisecond)
			return nil
		})
	}()
	<-blocked
	cancel()

	err := pool.Submit(ctx, func(ctx context.Context) error { return nil })
	require.Error(t, err)
}

func TestNewNormalizesNonPositiveSize(t *testing.T) {
	require.Equal(t, 1, New(0).Size())
	require.Equal(t, 1, New(-3).Size())
	require.Equal(t, 5, New(5).Size())
}
