package shutdownqueue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestAddNilTaskIsIgnored(t *testing.T) {
	t.Parallel()

	q := New()
	q.Add("nil", nil)
	q.AddCloser("nil", nil)

	assert.Equal(t, 0, q.Len())
	require.NoError(t, q.Shutdown(t.Context()))
}

func TestLIFOOrder(t *testing.T) {
	t.Parallel()

	q := New()
	var order []int

	for i := 1; i <= 3; i++ {
		q.Add("task", func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	require.NoError(t, q.Shutdown(t.Context()))
	assert.Equal(t, []int{3, 2, 1}, order)
}

func TestPanicRecoveredAndDrainContinues(t *testing.T) {
	t.Parallel()

	q := New()
	var ranFirst atomic.Bool

	q.Add("first", func(context.Context) error {
		ranFirst.Store(true)
		return nil
	})
	q.Add("boom", func(context.Context) error { panic("boom") })

	err := q.Shutdown(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in shutdown task boom: boom")
	assert.True(t, ranFirst.Load())
}

func TestErrorsAreJoinedAndNamed(t *testing.T) {
	t.Parallel()

	q := New()
	errStore := errors.New("store close failed")
	errBus := errors.New("bus close failed")

	q.AddCloser("store", closerFunc(func() error { return errStore }))
	q.AddCloser("bus", closerFunc(func() error { return errBus }))

	err := q.Shutdown(t.Context())
	require.ErrorIs(t, err, errStore)
	require.ErrorIs(t, err, errBus)
	assert.Contains(t, err.Error(), "store: store close failed")
}

func TestCancelStopsDrain(t *testing.T) {
	t.Parallel()

	q := New()
	var ranLast atomic.Bool

	q.Add("last", func(context.Context) error {
		ranLast.Store(true)
		return nil
	})

	entered := make(chan struct{})
	q.Add("gate", func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- q.Shutdown(ctx) }()

	<-entered
	cancel()

	err := <-errCh
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ranLast.Load())
}

func TestShutdownRunsOnce(t *testing.T) {
	t.Parallel()

	q := New()
	var count atomic.Int32
	q.Add("count", func(context.Context) error {
		count.Add(1)
		return nil
	})

	require.NoError(t, q.Shutdown(t.Context()))
	require.NoError(t, q.Shutdown(t.Context()))

	q.Add("late", func(context.Context) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, q.Shutdown(t.Context()))

	assert.Equal(t, int32(1), count.Load())
}
