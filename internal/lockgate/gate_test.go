package lockgate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder(t *testing.T) {
	t.Parallel()

	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("80000000-0000-0000-0000-000000000000")
	c := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	got := Order(c, a, b, a, c)
	assert.Equal(t, []uuid.UUID{a, b, c}, got)

	// byte order matches the canonical string order
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].String(), got[i].String())
	}
}

func TestGate_MutualExclusion(t *testing.T) {
	t.Parallel()

	g := New()
	id := uuid.New()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			unlock, err := g.Lock(context.Background(), id)
			if err != nil {
				t.Errorf("lock: %v", err)
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, g.Size(), "idle entries must be removed")
}

func TestGate_OppositeOrderNoDeadlock(t *testing.T) {
	t.Parallel()

	g := New()
	a, b := uuid.New(), uuid.New()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock, err := g.Lock(ctx, a, b)
			if err != nil {
				t.Errorf("lock a,b: %v", err)
				return
			}
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock, err := g.Lock(ctx, b, a)
			if err != nil {
				t.Errorf("lock b,a: %v", err)
				return
			}
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, g.Size())
}

func TestGate_ContextBoundedWait(t *testing.T) {
	t.Parallel()

	g := New()
	a, b := uuid.New(), uuid.New()

	unlockB, err := g.Lock(context.Background(), b)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = g.Lock(ctx, a, b)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// a was released when b timed out
	unlockA, err := g.Lock(context.Background(), a)
	require.NoError(t, err)
	unlockA()

	unlockB()
	assert.Equal(t, 0, g.Size())
}

func TestGate_UnlockIsIdempotent(t *testing.T) {
	t.Parallel()

	g := New()
	id := uuid.New()

	unlock, err := g.Lock(context.Background(), id, id)
	require.NoError(t, err)
	unlock()
	unlock()

	unlock, err = g.Lock(context.Background(), id)
	require.NoError(t, err)
	unlock()
}
