// Package redisbus carries bus events over Redis pub/sub.
package redisbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastprodman/casinoledger/internal/bus"
	"github.com/redis/go-redis/v9"
)

var _ bus.Bus = (*Bus)(nil)

type Bus struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// New takes ownership of client; Close closes it.
func New(client *redis.Client, channel string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{client: client, channel: channel, logger: logger}
}

func (b *Bus) Publish(ctx context.Context, ev bus.Event) error {
	payload, err := bus.Encode(ev)
	if err != nil {
		return err
	}

	err = b.client.Publish(ctx, b.channel, payload).Err()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

func (b *Bus) Subscribe(ctx context.Context, h bus.Handler) error {
	return bus.Reconnect(ctx, b.logger, "redis", func(ctx context.Context, connected func()) error {
		return b.listen(ctx, h, connected)
	})
}

func (b *Bus) listen(ctx context.Context, h bus.Handler, connected func()) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()

	// wait for the subscription confirmation
	_, err := ps.Receive(ctx)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	connected()
	b.logger.Info("bus subscribed", "bus", "redis", "channel", b.channel)

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("redis subscription closed")
			}

			ev, err := bus.Decode([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("dropping malformed bus event", "bus", "redis", "error", err)
				continue
			}
			h(ctx, ev)
		}
	}
}

func (b *Bus) Close() error {
	return b.client.Close()
}
