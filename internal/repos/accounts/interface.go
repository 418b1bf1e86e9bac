package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrConflict             = errors.New("version conflict")
	ErrTransient            = errors.New("transient store error")
	ErrInvalidMutation      = errors.New("invalid mutation")
)

// Store is the durable owner of balances and the append-only transaction log.
//
// ApplyTransaction is atomic and checks, in order: duplicate transaction id,
// expected version, non-negative result. A missing account has version 0 and
// is created by a mutation that expects version 0.
type Store interface {
	GetBalance(ctx context.Context, accountID uuid.UUID) (Snapshot, error)
	ApplyTransaction(ctx context.Context, m Mutation) (Record, error)
	GetTransaction(ctx context.Context, transactionID string) (Record, error)
	History(ctx context.Context, accountID uuid.UUID, limit int) ([]Record, error)
	HistoryByGame(ctx context.Context, game string, limit int) ([]Record, error)
	CountTransactions(ctx context.Context, accountID uuid.UUID) (int64, error)
	TopBalances(ctx context.Context, limit int) ([]Snapshot, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Close() error
}

// IsTransient reports whether err is worth retrying against the store.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err is a business or concurrency rejection
// that retrying with the same input cannot fix.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrInvalidMutation)
}
