// Package pgnotify carries bus events over Postgres LISTEN/NOTIFY. It only
// makes sense when every instance shares the same Postgres store.
package pgnotify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fastprodman/casinoledger/internal/bus"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ bus.Bus = (*Bus)(nil)

type Bus struct {
	pool    *pgxpool.Pool
	channel string
	logger  *slog.Logger
	owned   bool
}

// New uses pool without taking ownership of it.
func New(pool *pgxpool.Pool, channel string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{pool: pool, channel: channel, logger: logger}
}

// NewOwned is New, but Close also closes the pool.
func NewOwned(pool *pgxpool.Pool, channel string, logger *slog.Logger) *Bus {
	b := New(pool, channel, logger)
	b.owned = true
	return b
}

func (b *Bus) Publish(ctx context.Context, ev bus.Event) error {
	payload, err := bus.Encode(ev)
	if err != nil {
		return err
	}

	_, err = b.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, b.channel, string(payload))
	if err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}

	return nil
}

func (b *Bus) Subscribe(ctx context.Context, h bus.Handler) error {
	return bus.Reconnect(ctx, b.logger, "pgnotify", func(ctx context.Context, connected func()) error {
		return b.listen(ctx, h, connected)
	})
}

func (b *Bus) listen(ctx context.Context, h bus.Handler, connected func()) error {
	pooled, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listener: %w", err)
	}

	// A LISTENing connection must never go back to the pool.
	conn := pooled.Hijack()
	defer conn.Close(context.WithoutCancel(ctx))

	_, err = conn.Exec(ctx, "LISTEN "+pgx.Identifier{b.channel}.Sanitize())
	if err != nil {
		return fmt.Errorf("listen %s: %w", b.channel, err)
	}
	connected()
	b.logger.Info("bus subscribed", "bus", "pgnotify", "channel", b.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		ev, err := bus.Decode([]byte(n.Payload))
		if err != nil {
			b.logger.Warn("dropping malformed bus event", "bus", "pgnotify", "error", err)
			continue
		}
		h(ctx, ev)
	}
}

func (b *Bus) Close() error {
	if b.owned {
		b.pool.Close()
	}
	return nil
}
