package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitReturnsValue(t *testing.T) {
	pool := NewPool(2, 4)
	defer pool.Close()

	f := Submit(context.Background(), pool, func(context.Context) (int, error) { return 42, nil })
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestSubmitPropagatesError(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Close()

	boom := errors.New("boom")
	f := Submit(context.Background(), pool, func(context.Context) (string, error) { return "", boom })
	_, err := f.Get(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSubmitRecoversPanic(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Close()

	f := Submit(context.Background(), pool, func(context.Context) (int, error) { panic("bad item") })
	_, err := f.Get(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad item")

	// The worker survives the panic.
	f = Submit(context.Background(), pool, func(context.Context) (int, error) { return 1, nil })
	v, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSubmitDetachesCancellation(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	f := Submit(ctx, pool, func(taskCtx context.Context) (bool, error) {
		close(started)
		<-release
		return taskCtx.Err() == nil, nil
	})
	<-started
	cancel()
	close(release)

	live, err := f.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, live)
}

func TestGetHonoursCallerContext(t *testing.T) {
	pool := NewPool(1, 1)
	defer pool.Close()

	release := make(chan struct{})
	defer close(release)
	f := Submit(context.Background(), pool, func(context.Context) (int, error) {
		<-release
		return 0, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClosedPoolRejectsWork(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Close()

	f := Submit(context.Background(), pool, func(context.Context) (int, error) { return 1, nil })
	_, err := f.Get(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, pool.Go(context.Background(), func() {}), ErrPoolClosed)
}

func TestCloseDrainsQueuedTasks(t *testing.T) {
	pool := NewPool(2, 10)
	var ran atomic.Int32
	for range 10 {
		require.NoError(t, pool.Go(context.Background(), func() { ran.Add(1) }))
	}
	pool.Close()
	assert.Equal(t, int32(10), ran.Load())
}
