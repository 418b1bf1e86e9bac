// Package lockgate serializes work per account inside one process.
//
// Multi-account acquisition always takes locks in ascending byte order of the
// account id, so two callers locking the same pair can never deadlock.
// Idle entries are dropped, so the table does not grow with every account
// ever seen.
package lockgate

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type entry struct {
	sem  chan struct{} // 1-buffered: full means locked
	refs int
}

type Gate struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

func New() *Gate {
	return &Gate{entries: make(map[uuid.UUID]*entry)}
}

// Lock blocks until every id is held or ctx is done. The returned func
// releases all of them and must be called exactly once.
func (g *Gate) Lock(ctx context.Context, ids ...uuid.UUID) (func(), error) {
	ordered := Order(ids...)

	held := make([]uuid.UUID, 0, len(ordered))
	for _, id := range ordered {
		err := g.acquire(ctx, id)
		if err != nil {
			g.releaseAll(held)
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		held = append(held, id)
	}

	var once sync.Once
	return func() {
		once.Do(func() { g.releaseAll(held) })
	}, nil
}

// Order sorts ids by their byte representation and drops duplicates.
func Order(ids ...uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}

// Size reports how many accounts currently have an entry.
func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.entries)
}

func (g *Gate) acquire(ctx context.Context, id uuid.UUID) error {
	g.mu.Lock()
	e, ok := g.entries[id]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		g.entries[id] = e
	}
	e.refs++
	g.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		g.unref(id, e)
		return ctx.Err()
	}
}

func (g *Gate) releaseAll(ids []uuid.UUID) {
	for i := len(ids) - 1; i >= 0; i-- {
		g.release(ids[i])
	}
}

func (g *Gate) release(id uuid.UUID) {
	g.mu.Lock()
	e := g.entries[id]
	g.mu.Unlock()

	<-e.sem
	g.unref(id, e)
}

func (g *Gate) unref(id uuid.UUID, e *entry) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(g.entries, id)
	}
}
