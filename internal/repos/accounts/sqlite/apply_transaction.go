package sqlite

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

// ApplyTransaction runs the duplicate, version and funds checks and the
// write in one IMMEDIATE transaction.
func (s *Store) ApplyTransaction(ctx context.Context, m accounts.Mutation) (accounts.Record, error) {
	if err := m.Validate(); err != nil {
		return accounts.Record{}, err
	}

	var rec accounts.Record

	err := sqlutil.WithTx(ctx, s.sqlDB, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT count(1) FROM ledger_transactions WHERE transaction_id = ?`,
			m.TransactionID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("check transaction id: %w", err)
		}
		if n > 0 {
			return accounts.ErrDuplicateTransaction
		}

		var balance, version int64
		missing := false

		err = tx.QueryRowContext(ctx,
			`SELECT balance, version FROM accounts WHERE id = ?`,
			m.AccountID.String(),
		).Scan(&balance, &version)
		if errors.Is(err, sql.ErrNoRows) {
			missing = true
		} else if err != nil {
			return fmt.Errorf("read account: %w", err)
		}

		if version != m.ExpectedVersion {
			return accounts.ErrConflict
		}

		if m.Delta > 0 && balance > math.MaxInt64-m.Delta {
			return fmt.Errorf("%w: balance overflow", accounts.ErrInvalidMutation)
		}
		newBalance := balance + m.Delta
		if newBalance < 0 {
			return accounts.ErrInsufficientFunds
		}

		now := time.Now().UTC().Truncate(time.Millisecond)

		var res sql.Result
		if missing {
			res, err = tx.ExecContext(ctx,
				`INSERT INTO accounts (id, balance, version, created_at, updated_at)
				 VALUES (?, ?, 1, ?, ?)
				 ON CONFLICT (id) DO NOTHING`,
				m.AccountID.String(), newBalance, toMillis(now), toMillis(now),
			)
		} else {
			res, err = tx.ExecContext(ctx,
				`UPDATE accounts
				 SET balance = ?, version = version + 1, updated_at = ?
				 WHERE id = ? AND version = ?`,
				newBalance, toMillis(now), m.AccountID.String(), version,
			)
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

		_, err = tx.ExecContext(ctx,
			`INSERT INTO ledger_transactions (
			   transaction_id, account_id, delta, kind, reason, game, description,
			   balance_after, version_after, created_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.TransactionID, rec.AccountID.String(), rec.Delta, string(rec.Kind),
			string(rec.Reason), rec.Game, rec.Description, rec.BalanceAfter,
			rec.VersionAfter, toMillis(rec.CreatedAt),
		)
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
