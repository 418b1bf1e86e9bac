package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/fastprodman/casinoledger/internal/infra/sqlutil"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
)

func (r *accountsRepo) ApplyTransaction(ctx context.Context, m accounts.Mutation) (accounts.Record, error) {
	err := m.Validate()
	if err != nil {
		return accounts.Record{}, err
	}

	var rec accounts.Record

	err = sqlutil.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS (SELECT 1 FROM ledger_transactions WHERE transaction_id = $1)
		`, m.TransactionID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check transaction id: %w", err)
		}
		if exists {
			return accounts.ErrDuplicateTransaction
		}

		var balance, version int64
		missing := false

		err = tx.QueryRowContext(ctx, `
			SELECT balance, version
			FROM accounts
			WHERE id = $1
			FOR UPDATE
		`, m.AccountID).Scan(&balance, &version)
		if errors.Is(err, sql.ErrNoRows) {
			missing = true
		} else if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		if version != m.ExpectedVersion {
			return accounts.ErrConflict
		}

		newBalance, err := addBalance(balance, m.Delta)
		if err != nil {
			return err
		}

		// TIMESTAMPTZ keeps microseconds
		now := time.Now().UTC().Truncate(time.Microsecond)

		var res sql.Result
		if missing {
			res, err = tx.ExecContext(ctx, `
				INSERT INTO accounts (id, balance, version, created_at, updated_at)
				VALUES ($1, $2, 1, $3, $3)
				ON CONFLICT (id) DO NOTHING
			`, m.AccountID, newBalance, now)
		} else {
			res, err = tx.ExecContext(ctx, `
				UPDATE accounts
				SET balance = $2, version = version + 1, updated_at = $3
				WHERE id = $1
				  AND version = $4
			`, m.AccountID, newBalance, now, version)
		}
		if err != nil {
			return fmt.Errorf("write account: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if affected == 0 {
			return accounts.ErrConflict
		}

		rec = accounts.Record{
			TransactionID: m.TransactionID,
			AccountID:     m.AccountID,
			Delta:         m.Delta,
			Kind:          m.Kind,
			Reason:        m.Reason,
			Game:          m.Game,
			Description:   m.Description,
			BalanceAfter:  newBalance,
			VersionAfter:  version + 1,
			CreatedAt:     now,
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_transactions (
				transaction_id, account_id, delta, kind, reason, game, description,
				balance_after, version_after, created_at
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, rec.TransactionID, rec.AccountID, rec.Delta, string(rec.Kind), string(rec.Reason),
			rec.Game, rec.Description, rec.BalanceAfter, rec.VersionAfter, rec.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return accounts.ErrDuplicateTransaction
			}

			return fmt.Errorf("insert transaction: %w", err)
		}

		return nil
	})
	if err != nil {
		return accounts.Record{}, classify(err)
	}

	return rec, nil
}

func addBalance(balance, delta int64) (int64, error) {
	if delta > 0 && balance > math.MaxInt64-delta {
		return 0, fmt.Errorf("%w: balance overflow", accounts.ErrInvalidMutation)
	}

	next := balance + delta
	if next < 0 {
		return 0, accounts.ErrInsufficientFunds
	}

	return next, nil
}
