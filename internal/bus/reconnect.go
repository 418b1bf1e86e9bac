package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Session runs one connected subscription. It returns when the connection
// breaks or ctx is done. connected must be called once the subscription is
// live so the backoff can reset.
type Session func(ctx context.Context, connected func()) error

// Reconnect keeps running session until ctx is done, sleeping with
// exponential backoff between failed sessions.
func Reconnect(ctx context.Context, logger *slog.Logger, name string, session Session) error {
	if logger == nil {
		logger = slog.Default()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 10 * time.Second

	for {
		err := session(ctx, b.Reset)
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		logger.Warn("bus subscription lost, reconnecting",
			"bus", name,
			"error", err,
			"retry_in", wait,
		)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}
