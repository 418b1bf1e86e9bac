package balancecache

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCache(size int, ttl time.Duration) (*Cache, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(Options{MaxEntries: size, TTL: ttl, Now: clk.Now}), clk
}

func TestCache_PutGet(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(10, 0)
	id := uuid.New()

	_, ok := c.Get(id)
	require.False(t, ok)

	require.True(t, c.Put(id, 100, 1))
	e, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, int64(100), e.Balance)
	assert.Equal(t, int64(1), e.Version)
}

func TestCache_PutIsVersionGuarded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		version     int64
		balance     int64
		wantApplied bool
		wantBalance int64
	}{
		{name: "newer_replaces", version: 6, balance: 60, wantApplied: true, wantBalance: 60},
		{name: "equal_refreshes", version: 5, balance: 50, wantApplied: true, wantBalance: 50},
		{name: "older_dropped", version: 4, balance: 40, wantApplied: false, wantBalance: 50},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := newTestCache(10, 0)
			id := uuid.New()
			c.Put(id, 50, 5)

			assert.Equal(t, tt.wantApplied, c.Put(id, tt.balance, tt.version))
			e, ok := c.Get(id)
			require.True(t, ok)
			assert.Equal(t, tt.wantBalance, e.Balance)
		})
	}
}

func TestCache_TTL(t *testing.T) {
	t.Parallel()

	c, clk := newTestCache(10, time.Minute)
	id := uuid.New()
	c.Put(id, 10, 1)

	clk.Advance(30 * time.Second)
	_, ok := c.Get(id)
	require.True(t, ok)

	// equal version refreshes the timestamp
	c.Put(id, 10, 1)
	clk.Advance(45 * time.Second)
	_, ok = c.Get(id)
	require.True(t, ok)

	clk.Advance(time.Minute)
	_, ok = c.Get(id)
	require.False(t, ok)

	// a stale entry does not block an older version from being stored
	c.Put(id, 20, 3)
	clk.Advance(2 * time.Minute)
	require.True(t, c.Put(id, 15, 2))
}

func TestCache_LRUEviction(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(2, 0)
	a, b, d := uuid.New(), uuid.New(), uuid.New()

	c.Put(a, 1, 1)
	c.Put(b, 2, 1)
	_, _ = c.Get(a) // a is now most recent
	c.Put(d, 3, 1)

	_, ok := c.Get(b)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(a)
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_ApplyRemote(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(10, 0)
	cached, absent := uuid.New(), uuid.New()
	c.Put(cached, 100, 3)

	assert.False(t, c.ApplyRemote(absent, 5, 9), "absent entries are not populated")
	_, ok := c.Get(absent)
	assert.False(t, ok)

	assert.False(t, c.ApplyRemote(cached, 90, 3), "duplicate version dropped")
	assert.False(t, c.ApplyRemote(cached, 80, 2), "older version dropped")
	assert.True(t, c.ApplyRemote(cached, 120, 4))

	e, _ := c.Get(cached)
	assert.Equal(t, int64(120), e.Balance)
	assert.Equal(t, int64(4), e.Version)
}

func TestCache_InvalidateAndPurge(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(10, 0)
	a, b := uuid.New(), uuid.New()
	c.Put(a, 1, 1)
	c.Put(b, 1, 1)

	c.Invalidate(a)
	_, ok := c.Get(a)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentPutsKeepNewest(t *testing.T) {
	t.Parallel()

	c, _ := newTestCache(10, 0)
	id := uuid.New()

	var wg sync.WaitGroup
	for v := int64(1); v <= 100; v++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			c.Put(id, v*10, v)
		}(v)
	}
	wg.Wait()

	e, ok := c.Get(id)
	require.True(t, ok)
	assert.Equal(t, int64(100), e.Version)
	assert.Equal(t, int64(1000), e.Balance)
}
