// Package balancecache is the process-local shadow of committed balances.
//
// Entries are bounded by an LRU capacity and a time-to-live. A cached version
// is only ever replaced by a strictly newer one, so late or reordered updates
// cannot roll a balance back.
package balancecache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Entry is a cached (balance, version) pair.
type Entry struct {
	Balance     int64
	Version     int64
	RefreshedAt time.Time
}

type Options struct {
	MaxEntries int
	TTL        time.Duration    // 0 disables expiry
	Now        func() time.Time // defaults to time.Now
}

type Cache struct {
	mu  sync.Mutex
	lru *expirable.LRU[uuid.UUID, Entry]
	ttl time.Duration
	now func() time.Time
}

func New(opts Options) *Cache {
	size := opts.MaxEntries
	if size <= 0 {
		size = 1000
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Cache{
		lru: expirable.NewLRU[uuid.UUID, Entry](size, nil, opts.TTL),
		ttl: opts.TTL,
		now: now,
	}
}

// Get returns a live entry and marks it recently used.
func (c *Cache) Get(id uuid.UUID) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(id)
	if !ok {
		return Entry{}, false
	}
	if c.expired(e) {
		c.lru.Remove(id)
		return Entry{}, false
	}

	return e, true
}

// Put stores a value read from or committed to the store. An older version
// than the cached one is dropped and Put returns false.
func (c *Cache) Put(id uuid.UUID, balance, version int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.lru.Peek(id); ok && !c.expired(cur) && cur.Version > version {
		return false
	}

	c.lru.Add(id, Entry{Balance: balance, Version: version, RefreshedAt: c.now()})
	return true
}

// ApplyRemote merges a peer's committed state. Only entries already cached
// are touched, and only by a strictly newer version.
func (c *Cache) ApplyRemote(id uuid.UUID, balance, version int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	cur, ok := c.lru.Peek(id)
	if !ok {
		return false
	}
	if c.expired(cur) {
		c.lru.Remove(id)
		return false
	}
	if version <= cur.Version {
		return false
	}

	c.lru.Add(id, Entry{Balance: balance, Version: version, RefreshedAt: c.now()})
	return true
}

func (c *Cache) Invalidate(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(id)
}

// Len counts entries including ones past their TTL that were not yet swept.
func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Purge()
}

func (c *Cache) expired(e Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.RefreshedAt) >= c.ttl
}
