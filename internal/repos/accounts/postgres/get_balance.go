package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
)

func (r *accountsRepo) GetBalance(ctx context.Context, accountID uuid.UUID) (accounts.Snapshot, error) {
	s := accounts.Snapshot{AccountID: accountID}

	err := r.db.QueryRowContext(ctx, `
		SELECT balance, version, updated_at
		FROM accounts
		WHERE id = $1
	`, accountID).Scan(&s.Balance, &s.Version, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Snapshot{}, accounts.ErrAccountNotFound
	}
	if err != nil {
		return accounts.Snapshot{}, classify(fmt.Errorf("get balance: %w", err))
	}

	return s, nil
}
