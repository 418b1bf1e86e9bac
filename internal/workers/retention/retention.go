// Package retention periodically prunes old transaction records.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/fastprodman/casinoledger/internal/infra/logging"
)

type Pruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Worker struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a worker that keeps retention worth of records and runs every
// interval. A zero retention disables pruning.
func New(p Pruner, retention, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		pruner:    p,
		retention: retention,
		interval:  interval,
		logger:    logging.Component(logger, "retention"),
		now:       time.Now,
	}
}

// Run prunes once immediately, then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if w.retention <= 0 {
		w.logger.Info("retention disabled")
		<-ctx.Done()
		return nil
	}

	w.logger.Info("retention worker started", "retention", w.retention, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		_, _ = w.RunOnce(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	n, err := w.pruner.PruneBefore(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("prune failed", "cutoff", cutoff, "error", err)
		}
		return 0, err
	}
	if n > 0 {
		w.logger.Info("pruned transaction records", "count", n, "cutoff", cutoff)
	}

	return n, nil
}
