package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
)

// GetBalance serves from the cache when possible. Concurrent misses for the
// same account share one store read.
func (s *Service) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	snap, err := s.Snapshot(ctx, id)
	if err != nil {
		return 0, err
	}
	return snap.Balance, nil
}

func (s *Service) Snapshot(ctx context.Context, id uuid.UUID) (accounts.Snapshot, error) {
	if id == uuid.Nil {
		return accounts.Snapshot{}, fmt.Errorf("%w: account id is required", ErrInvalidRequest)
	}

	if e, ok := s.cache.Get(id); ok {
		s.metrics.CacheLookup(true)
		return accounts.Snapshot{AccountID: id, Balance: e.Balance, Version: e.Version}, nil
	}
	s.metrics.CacheLookup(false)

	// The shared read outlives any single caller; each caller still stops
	// waiting at its own deadline.
	shared := context.WithoutCancel(ctx)
	ch := s.reads.DoChan(id.String(), func() (any, error) {
		return s.load(shared, id)
	})

	select {
	case <-ctx.Done():
		return accounts.Snapshot{}, fmt.Errorf("get balance %s: %w", id, ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return accounts.Snapshot{}, fmt.Errorf("get balance %s: %w", id, r.Err)
		}
		return r.Val.(accounts.Snapshot), nil
	}
}

// HasBalance reports whether the account holds at least amount. Unknown
// accounts hold nothing.
func (s *Service) HasBalance(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	bal, err := s.GetBalance(ctx, id)
	if errors.Is(err, accounts.ErrAccountNotFound) {
		return amount <= 0, nil
	}
	if err != nil {
		return false, err
	}
	return bal >= amount, nil
}

// History returns the account's records, newest first.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit int) ([]accounts.Record, error) {
	recs, err := retryTransient(ctx, s, func(ctx context.Context) ([]accounts.Record, error) {
		return s.store.History(ctx, id, clampLimit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}
	return recs, nil
}

func (s *Service) HistoryByGame(ctx context.Context, game string, limit int) ([]accounts.Record, error) {
	if game == "" {
		return nil, fmt.Errorf("%w: game is required", ErrInvalidRequest)
	}

	recs, err := retryTransient(ctx, s, func(ctx context.Context) ([]accounts.Record, error) {
		return s.store.HistoryByGame(ctx, game, clampLimit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("game history %s: %w", game, err)
	}
	return recs, nil
}

func (s *Service) CountTransactions(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := retryTransient(ctx, s, func(ctx context.Context) (int64, error) {
		return s.store.CountTransactions(ctx, id)
	})
	if err != nil {
		return 0, fmt.Errorf("count transactions %s: %w", id, err)
	}
	return n, nil
}

func (s *Service) Transaction(ctx context.Context, transactionID string) (accounts.Record, error) {
	rec, err := retryTransient(ctx, s, func(ctx context.Context) (accounts.Record, error) {
		return s.store.GetTransaction(ctx, transactionID)
	})
	if err != nil {
		return accounts.Record{}, fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	return rec, nil
}

// Leaderboard returns the richest accounts, straight from the store.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]accounts.Snapshot, error) {
	top, err := retryTransient(ctx, s, func(ctx context.Context) ([]accounts.Snapshot, error) {
		return s.store.TopBalances(ctx, clampLimit(limit))
	})
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return top, nil
}

// PruneBefore drops transaction records older than cutoff. Balances are
// untouched; replay protection for pruned ids is lost.
func (s *Service) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := retryTransient(ctx, s, func(ctx context.Context) (int64, error) {
		return s.store.PruneBefore(ctx, cutoff)
	})
	if err != nil {
		return 0, fmt.Errorf("prune before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	s.metrics.Pruned(n)
	return n, nil
}
