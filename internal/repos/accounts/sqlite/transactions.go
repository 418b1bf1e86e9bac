package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/casinoledger/internal/infra/sqlutil"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
)

const recordColumns = `transaction_id, account_id, delta, kind, reason, game, description,
	balance_after, version_after, created_at`

func (s *Store) GetTransaction(ctx context.Context, transactionID string) (accounts.Record, error) {
	rec, err := scanRecord(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM ledger_transactions WHERE transaction_id = ?`,
		transactionID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Record{}, accounts.ErrTransactionNotFound
	}
	if err != nil {
		return accounts.Record{}, classify(fmt.Errorf("get transaction: %w", err))
	}

	return rec, nil
}

func (s *Store) History(ctx context.Context, accountID uuid.UUID, limit int) ([]accounts.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM ledger_transactions
		 WHERE account_id = ?
		 ORDER BY version_after DESC
		 LIMIT ?`,
		accountID.String(), limit,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("query history: %w", err))
	}

	return collectRecords(rows)
}

func (s *Store) HistoryByGame(ctx context.Context, game string, limit int) ([]accounts.Record, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM ledger_transactions
		 WHERE game = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		game, limit,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("query game history: %w", err))
	}

	return collectRecords(rows)
}

func (s *Store) CountTransactions(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var n int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT count(1) FROM ledger_transactions WHERE account_id = ?`,
		accountID.String(),
	).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Errorf("count transactions: %w", err))
	}

	return n, nil
}

func (s *Store) TopBalances(ctx context.Context, limit int) ([]accounts.Snapshot, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, balance, version, updated_at FROM accounts
		 ORDER BY balance DESC, id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("query top balances: %w", err))
	}
	defer rows.Close()

	var out []accounts.Snapshot
	for rows.Next() {
		var (
			snap    accounts.Snapshot
			id      string
			updated int64
		)
		if err := rows.Scan(&id, &snap.Balance, &snap.Version, &updated); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.AccountID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse account id %q: %w", id, err)
		}
		snap.UpdatedAt = fromMillis(updated)
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate top balances: %w", err))
	}

	return out, nil
}

func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM ledger_transactions WHERE created_at < ?`,
		toMillis(cutoff),
	)
	if err != nil {
		return 0, classify(fmt.Errorf("prune transactions: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}

func scanRecord(row sqlutil.RowScanner) (accounts.Record, error) {
	var (
		rec              accounts.Record
		id, kind, reason string
		created          int64
	)

	err := row.Scan(&rec.TransactionID, &id, &rec.Delta, &kind, &reason, &rec.Game,
		&rec.Description, &rec.BalanceAfter, &rec.VersionAfter, &created)
	if err != nil {
		return accounts.Record{}, err
	}

	rec.AccountID, err = uuid.Parse(id)
	if err != nil {
		return accounts.Record{}, fmt.Errorf("parse account id %q: %w", id, err)
	}
	rec.Kind = accounts.Kind(kind)
	rec.Reason = accounts.Reason(reason)
	rec.CreatedAt = fromMillis(created)

	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]accounts.Record, error) {
	defer rows.Close()

	var out []accounts.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate records: %w", err))
	}

	return out, nil
}
