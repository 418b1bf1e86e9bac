package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
)

// retryTransient calls op until it succeeds, fails permanently or the
// attempt budget runs out. Every attempt gets its own OpTimeout.
func retryTransient[T any](ctx context.Context, s *Service, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.BackoffInitial
	b.MaxInterval = s.cfg.BackoffMax

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		if attempt > 0 {
			s.metrics.Retry("transient")
		}
		attempt++

		opCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
		defer cancel()

		v, err := op(opCtx)
		if err == nil {
			return v, nil
		}

		// The attempt ran out of time while the caller is still waiting.
		if !accounts.IsTransient(err) && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", accounts.ErrTransient, err)
		}
		if accounts.IsTransient(err) {
			s.logger.Debug("transient store error", "attempt", attempt, "error", err)
			return v, err
		}

		return v, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.cfg.MaxTransientAttempts)),
	)
}
