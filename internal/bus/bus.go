// Package bus carries post-commit balance hints between ledger instances.
//
// Events are hints only. Losing one costs a cache miss later, never
// correctness, because the store's version check stays authoritative.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrClosed = errors.New("bus closed")

// Event announces a committed mutation.
type Event struct {
	AccountID        uuid.UUID `json:"accountId"`
	NewVersion       int64     `json:"newVersion"`
	NewBalance       int64     `json:"newBalance"`
	TransactionID    string    `json:"transactionId"`
	OriginInstanceID string    `json:"originInstanceId"`
}

type Handler func(ctx context.Context, ev Event)

type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe delivers events to h until ctx is done. Connection loss is
	// handled inside; the returned error is only for unrecoverable setup.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

func Encode(ev Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return b, nil
}

// Decode parses a wire payload. Unknown fields are ignored.
func Decode(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.AccountID == uuid.Nil {
		return Event{}, errors.New("decode event: missing accountId")
	}
	if ev.NewVersion <= 0 {
		return Event{}, fmt.Errorf("decode event: invalid newVersion %d", ev.NewVersion)
	}
	return ev, nil
}

// Nop is the disabled bus.
type Nop struct{}

var _ Bus = Nop{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Subscribe(ctx context.Context, _ Handler) error {
	<-ctx.Done()
	return nil
}

func (Nop) Close() error { return nil }
