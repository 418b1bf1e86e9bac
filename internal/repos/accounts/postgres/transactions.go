package postgres

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

const recordColumns = `
	transaction_id, account_id, delta, kind, reason, game, description,
	balance_after, version_after, created_at
`

func (r *accountsRepo) GetTransaction(ctx context.Context, transactionID string) (accounts.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM ledger_transactions
		WHERE transaction_id = $1
	`, transactionID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Record{}, accounts.ErrTransactionNotFound
	}
	if err != nil {
		return accounts.Record{}, classify(fmt.Errorf("get transaction: %w", err))
	}

	return rec, nil
}

func (r *accountsRepo) History(ctx context.Context, accountID uuid.UUID, limit int) ([]accounts.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM ledger_transactions
		WHERE account_id = $1
		ORDER BY version_after DESC
		LIMIT $2
	`, accountID, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("query history: %w", err))
	}

	return collectRecords(rows)
}

func (r *accountsRepo) HistoryByGame(ctx context.Context, game string, limit int) ([]accounts.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM ledger_transactions
		WHERE game = $1
		ORDER BY created_at DESC, transaction_id
		LIMIT $2
	`, game, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("query game history: %w", err))
	}

	return collectRecords(rows)
}

func (r *accountsRepo) CountTransactions(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var n int64

	err := r.db.QueryRowContext(ctx, `
		SELECT count(*) FROM ledger_transactions WHERE account_id = $1
	`, accountID).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Errorf("count transactions: %w", err))
	}

	return n, nil
}

func (r *accountsRepo) TopBalances(ctx context.Context, limit int) ([]accounts.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, balance, version, updated_at
		FROM accounts
		ORDER BY balance DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("query top balances: %w", err))
	}
	defer rows.Close()

	var out []accounts.Snapshot
	for rows.Next() {
		var s accounts.Snapshot
		err = rows.Scan(&s.AccountID, &s.Balance, &s.Version, &s.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}

	err = rows.Err()
	if err != nil {
		return nil, classify(fmt.Errorf("iterate top balances: %w", err))
	}

	return out, nil
}

func (r *accountsRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM ledger_transactions WHERE created_at < $1
	`, cutoff.UTC())
	if err != nil {
		return 0, classify(fmt.Errorf("prune transactions: %w", err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return n, nil
}

func scanRecord(s sqlutil.RowScanner) (accounts.Record, error) {
	var (
		rec          accounts.Record
		kind, reason string
	)

	err := s.Scan(&rec.TransactionID, &rec.AccountID, &rec.Delta, &kind, &reason, &rec.Game,
		&rec.Description, &rec.BalanceAfter, &rec.VersionAfter, &rec.CreatedAt)
	if err != nil {
		return accounts.Record{}, err
	}

	rec.Kind = accounts.Kind(kind)
	rec.Reason = accounts.Reason(reason)
	rec.CreatedAt = rec.CreatedAt.UTC()

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

	err := rows.Err()
	if err != nil {
		return nil, classify(fmt.Errorf("iterate records: %w", err))
	}

	return out, nil
}
