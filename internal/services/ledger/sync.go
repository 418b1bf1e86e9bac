package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/casinoledger/internal/bus"
	"golang.org/x/sync/errgroup"
)

// RunSync applies peer events to the cache and drains the outbox to the bus
// until ctx is done. It is a no-op loop when no bus is configured.
func (s *Service) RunSync(ctx context.Context) error {
	if !s.busEnabled() {
		<-ctx.Done()
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.bus.Subscribe(ctx, s.handleEvent)
		if err != nil {
			return fmt.Errorf("bus subscribe: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.publishLoop(ctx)
		return nil
	})

	return g.Wait()
}

func (s *Service) handleEvent(_ context.Context, ev bus.Event) {
	if ev.OriginInstanceID == s.cfg.InstanceID {
		s.metrics.BusEvent("in", "self")
		return
	}

	if s.cache.ApplyRemote(ev.AccountID, ev.NewBalance, ev.NewVersion) {
		s.metrics.BusEvent("in", "applied")
		s.logger.Debug("applied peer update",
			"account_id", ev.AccountID,
			"version", ev.NewVersion,
			"origin", ev.OriginInstanceID,
		)
		return
	}
	s.metrics.BusEvent("in", "ignored")
}

func (s *Service) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.flushOutbox()
			return
		case ev := <-s.outbox:
			s.publish(ctx, ev)
		}
	}
}

// FlushEvents publishes whatever is queued. Short-lived callers that never
// run RunSync call it before exiting.
func (s *Service) FlushEvents() {
	if s.busEnabled() {
		s.flushOutbox()
	}
}

// flushOutbox makes a bounded, best-effort attempt to send what is queued
// at shutdown.
func (s *Service) flushOutbox() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.OpTimeout)
	defer cancel()

	for {
		select {
		case ev := <-s.outbox:
			s.publish(ctx, ev)
		default:
			return
		}
	}
}

func (s *Service) publish(ctx context.Context, ev bus.Event) {
	pubCtx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	err := s.bus.Publish(pubCtx, ev)
	if err != nil {
		s.metrics.BusEvent("out", "failed")
		s.logger.Warn("bus publish failed",
			"account_id", ev.AccountID,
			"transaction_id", ev.TransactionID,
			"error", err,
		)
		return
	}
	s.metrics.BusEvent("out", "published")
}
