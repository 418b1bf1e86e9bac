package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/casinoledger/internal/bus"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
)

var errNothingToDo = errors.New("nothing to do")

// plan describes one single-account mutation. build turns the current
// snapshot into the mutation to submit; it runs again after every conflict.
// matches decides whether an already committed record with the same
// transaction id is a genuine replay.
type plan struct {
	accountID     uuid.UUID
	transactionID string
	build         func(cur accounts.Snapshot) (accounts.Mutation, error)
	matches       func(prev accounts.Record) bool
}

// fixedPlan applies a delta that does not depend on the current balance.
func fixedPlan(m accounts.Mutation) plan {
	return plan{
		accountID:     m.AccountID,
		transactionID: m.TransactionID,
		build: func(cur accounts.Snapshot) (accounts.Mutation, error) {
			m.ExpectedVersion = cur.Version
			return m, nil
		},
		matches: func(prev accounts.Record) bool {
			return prev.AccountID == m.AccountID && prev.Delta == m.Delta && prev.Kind == m.Kind
		},
	}
}

// commit runs p against the store with conflict and transient retries. The
// caller must hold the gate for p.accountID.
func (s *Service) commit(ctx context.Context, p plan) (accounts.Record, bool, error) {
	for conflicts := 0; ; {
		cur, err := s.current(ctx, p.accountID)
		if err != nil {
			return accounts.Record{}, false, abortIfTransient(err)
		}

		m, err := p.build(cur)
		if err != nil {
			return accounts.Record{}, false, err
		}

		rec, err := retryTransient(ctx, s, func(ctx context.Context) (accounts.Record, error) {
			return s.store.ApplyTransaction(ctx, m)
		})
		switch {
		case err == nil:
			s.cache.Put(rec.AccountID, rec.BalanceAfter, rec.VersionAfter)
			s.enqueue(rec)
			return rec, false, nil

		case errors.Is(err, accounts.ErrDuplicateTransaction):
			prev, err := s.replay(ctx, p)
			if err != nil {
				return accounts.Record{}, false, abortIfTransient(err)
			}
			return prev, true, nil

		case errors.Is(err, accounts.ErrConflict):
			s.cache.Invalidate(p.accountID)
			s.metrics.Retry("conflict")
			conflicts++
			if conflicts > s.cfg.MaxConflictRetries {
				s.logger.Warn("giving up after version conflicts",
					"account_id", p.accountID,
					"transaction_id", p.transactionID,
					"conflicts", conflicts,
				)
				return accounts.Record{}, false, fmt.Errorf("%w: %d version conflicts: %w",
					ErrTransactionAborted, conflicts, err)
			}

		case accounts.IsTransient(err):
			return accounts.Record{}, false, abortIfTransient(err)

		default:
			return accounts.Record{}, false, err
		}
	}
}

// abortIfTransient marks a store failure that outlived its retries as an
// aborted transaction. Nothing was committed by the failing step.
func abortIfTransient(err error) error {
	if accounts.IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
	}
	return err
}

// current returns the (balance, version) to base a mutation on. A missing
// account is version 0.
func (s *Service) current(ctx context.Context, id uuid.UUID) (accounts.Snapshot, error) {
	if e, ok := s.cache.Get(id); ok {
		s.metrics.CacheLookup(true)
		return accounts.Snapshot{AccountID: id, Balance: e.Balance, Version: e.Version}, nil
	}
	s.metrics.CacheLookup(false)

	snap, err := s.load(ctx, id)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return accounts.Snapshot{AccountID: id}, nil
	}
	if err != nil {
		return accounts.Snapshot{}, fmt.Errorf("read account %s: %w", id, err)
	}

	return snap, nil
}

// load reads through to the store and refreshes the cache.
func (s *Service) load(ctx context.Context, id uuid.UUID) (accounts.Snapshot, error) {
	snap, err := retryTransient(ctx, s, func(ctx context.Context) (accounts.Snapshot, error) {
		return s.store.GetBalance(ctx, id)
	})
	if err != nil {
		return accounts.Snapshot{}, err
	}

	s.cache.Put(id, snap.Balance, snap.Version)
	return snap, nil
}

func (s *Service) replay(ctx context.Context, p plan) (accounts.Record, error) {
	prev, err := retryTransient(ctx, s, func(ctx context.Context) (accounts.Record, error) {
		return s.store.GetTransaction(ctx, p.transactionID)
	})
	if err != nil {
		return accounts.Record{}, fmt.Errorf("load committed transaction %s: %w", p.transactionID, err)
	}
	if !p.matches(prev) {
		return accounts.Record{}, fmt.Errorf("%w: %s", ErrIdempotencyMismatch, p.transactionID)
	}

	return prev, nil
}

// enqueue hands a commit to the outbox. A full outbox drops the hint; peers
// fall back to their TTL and version checks.
func (s *Service) enqueue(rec accounts.Record) {
	if !s.busEnabled() {
		return
	}

	ev := bus.Event{
		AccountID:        rec.AccountID,
		NewVersion:       rec.VersionAfter,
		NewBalance:       rec.BalanceAfter,
		TransactionID:    rec.TransactionID,
		OriginInstanceID: s.cfg.InstanceID,
	}

	select {
	case s.outbox <- ev:
	default:
		s.metrics.OutboxDropped()
		s.logger.Warn("bus outbox full, dropping event",
			"account_id", rec.AccountID,
			"transaction_id", rec.TransactionID,
		)
	}
}
