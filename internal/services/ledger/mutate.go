package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
)

// Credit adds req.Amount to the account, creating it on first credit.
func (s *Service) Credit(ctx context.Context, req Request) (Result, error) {
	return s.single(ctx, "credit", req, accounts.KindCredit, req.Amount)
}

// Debit subtracts req.Amount. It fails with ErrInsufficientFunds, leaving the
// balance untouched, when the account holds less than that.
func (s *Service) Debit(ctx context.Context, req Request) (Result, error) {
	return s.single(ctx, "debit", req, accounts.KindDebit, -req.Amount)
}

func (s *Service) single(ctx context.Context, op string, req Request, kind accounts.Kind, delta int64) (res Result, err error) {
	started := time.Now()
	defer func() { s.metrics.Operation(op, outcome(err, res.Replayed), started) }()

	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if req.TransactionID == "" {
		req.TransactionID = uuid.NewString()
	}

	p := fixedPlan(accounts.Mutation{
		TransactionID: req.TransactionID,
		AccountID:     req.AccountID,
		Delta:         delta,
		Kind:          kind,
		Reason:        req.Reason,
		Game:          req.Game,
		Description:   req.Description,
	})

	var (
		rec      accounts.Record
		replayed bool
	)
	err = s.withGate(ctx, []uuid.UUID{req.AccountID}, func(ctx context.Context) error {
		var err error
		rec, replayed, err = s.commit(ctx, p)
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s %s: %w", op, req.TransactionID, err)
	}

	return resultFrom(rec, replayed), nil
}

// SetBalance moves the account to exactly req.Balance by committing the
// difference as an admin credit or debit. Setting the current balance is a
// no-op that returns the current state without a record.
func (s *Service) SetBalance(ctx context.Context, req SetBalanceRequest) (res Result, err error) {
	started := time.Now()
	defer func() { s.metrics.Operation("set_balance", outcome(err, res.Replayed), started) }()

	if err := req.validate(); err != nil {
		return Result{}, err
	}
	if req.TransactionID == "" {
		req.TransactionID = uuid.NewString()
	}

	var noop accounts.Snapshot

	p := plan{
		accountID:     req.AccountID,
		transactionID: req.TransactionID,
		build: func(cur accounts.Snapshot) (accounts.Mutation, error) {
			delta := req.Balance - cur.Balance
			if delta == 0 {
				noop = cur
				return accounts.Mutation{}, errNothingToDo
			}

			m := accounts.Mutation{
				TransactionID:   req.TransactionID,
				AccountID:       req.AccountID,
				Delta:           delta,
				ExpectedVersion: cur.Version,
				Kind:            accounts.KindCredit,
				Reason:          accounts.ReasonAdminGive,
				Description:     req.Description,
			}
			if delta < 0 {
				m.Kind = accounts.KindDebit
				m.Reason = accounts.ReasonAdminTake
			}
			return m, nil
		},
		matches: func(prev accounts.Record) bool {
			return prev.AccountID == req.AccountID && prev.BalanceAfter == req.Balance
		},
	}

	var (
		rec      accounts.Record
		replayed bool
	)
	err = s.withGate(ctx, []uuid.UUID{req.AccountID}, func(ctx context.Context) error {
		// A replay may find the target balance already in place, which the
		// no-op shortcut below would hide.
		prev, err := s.replay(ctx, p)
		switch {
		case err == nil:
			rec, replayed = prev, true
			return nil
		case !errors.Is(err, accounts.ErrTransactionNotFound):
			return err
		}

		rec, replayed, err = s.commit(ctx, p)
		return err
	})
	switch {
	case errors.Is(err, errNothingToDo):
		return Result{
			TransactionID: req.TransactionID,
			AccountID:     req.AccountID,
			Balance:       noop.Balance,
			Version:       noop.Version,
		}, nil
	case err != nil:
		return Result{}, fmt.Errorf("set balance %s: %w", req.TransactionID, err)
	}

	s.logger.Info("balance set by admin",
		"account_id", req.AccountID,
		"transaction_id", rec.TransactionID,
		"delta", rec.Delta,
		"balance", rec.BalanceAfter,
	)

	return resultFrom(rec, replayed), nil
}
