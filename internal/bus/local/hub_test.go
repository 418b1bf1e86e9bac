package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/casinoledger/internal/bus"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Subscribers() == n }, time.Second, time.Millisecond)
}

func TestHub_FanOut(t *testing.T) {
	t.Parallel()

	h := New()
	defer h.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got = map[int][]bus.Event{}
	)
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			_ = h.Subscribe(ctx, func(_ context.Context, ev bus.Event) {
				mu.Lock()
				got[i] = append(got[i], ev)
				mu.Unlock()
			})
		}()
	}
	waitSubscribers(t, h, 2)

	ev := bus.Event{AccountID: uuid.New(), NewVersion: 2, NewBalance: 10, OriginInstanceID: "a"}
	require.NoError(t, h.Publish(ctx, ev))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got[0]) == 1 && len(got[1]) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, ev, got[0][0])
	mu.Unlock()

	cancel()
	waitSubscribers(t, h, 0)
}

func TestHub_Closed(t *testing.T) {
	t.Parallel()

	h := New()
	require.NoError(t, h.Close())
	require.NoError(t, h.Close())

	require.ErrorIs(t, h.Publish(context.Background(), bus.Event{}), bus.ErrClosed)
	require.ErrorIs(t, h.Subscribe(context.Background(), func(context.Context, bus.Event) {}), bus.ErrClosed)
}
