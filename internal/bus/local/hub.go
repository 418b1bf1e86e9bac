// Package local is an in-process bus. Every subscriber on the same Hub sees
// every event, which lets several ledger engines share one process.
package local

import (
	"context"
	"sync"

	"github.com/fastprodman/casinoledger/internal/bus"
)

const queueSize = 1024

var _ bus.Bus = (*Hub)(nil)

type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan bus.Event
	next   int
	closed bool
	done   chan struct{}
}

func New() *Hub {
	return &Hub{
		subs: make(map[int]chan bus.Event),
		done: make(chan struct{}),
	}
}

// Publish fans ev out to every subscriber. A subscriber whose queue is full
// misses the event.
func (h *Hub) Publish(ctx context.Context, ev bus.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return bus.ErrClosed
	}
	for _, q := range h.subs {
		select {
		case q <- ev:
		default:
		}
	}

	return ctx.Err()
}

func (h *Hub) Subscribe(ctx context.Context, handler bus.Handler) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return bus.ErrClosed
	}
	id := h.next
	h.next++
	q := make(chan bus.Event, queueSize)
	h.subs[id] = q
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.done:
			return nil
		case ev := <-q:
			handler(ctx, ev)
		}
	}
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.closed {
		h.closed = true
		close(h.done)
	}
	return nil
}

// Subscribers reports how many subscriptions are active.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}
