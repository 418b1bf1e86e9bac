package accounts

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindDebit       Kind = "debit"
	KindCredit      Kind = "credit"
	KindTransferOut Kind = "transfer-out"
	KindTransferIn  Kind = "transfer-in"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindDebit, KindCredit, KindTransferOut, KindTransferIn:
		return true
	default:
		return false
	}
}

// Reason says why money moved. It is informational and never affects
// ledger semantics.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonBet       Reason = "bet"
	ReasonWin       Reason = "win"
	ReasonRefund    Reason = "refund"
	ReasonJackpot   Reason = "jackpot"
	ReasonDeposit   Reason = "deposit"
	ReasonWithdraw  Reason = "withdraw"
	ReasonAdminGive Reason = "admin_give"
	ReasonAdminTake Reason = "admin_take"
)

// ParseReason accepts the reason names case-insensitively.
func ParseReason(s string) (Reason, error) {
	r := Reason(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case ReasonNone, ReasonBet, ReasonWin, ReasonRefund, ReasonJackpot,
		ReasonDeposit, ReasonWithdraw, ReasonAdminGive, ReasonAdminTake:
		return r, nil
	default:
		return "", fmt.Errorf("unknown reason %q", s)
	}
}

// Snapshot is the committed state of one account.
type Snapshot struct {
	AccountID uuid.UUID
	Balance   int64 // minor units
	Version   int64
	UpdatedAt time.Time
}

// Mutation is one single-account change submitted to the store.
type Mutation struct {
	TransactionID   string
	AccountID       uuid.UUID
	Delta           int64
	ExpectedVersion int64
	Kind            Kind
	Reason          Reason
	Game            string
	Description     string
}

// Validate checks the shape of m before it reaches SQL.
func (m Mutation) Validate() error {
	switch {
	case strings.TrimSpace(m.TransactionID) == "":
		return fmt.Errorf("%w: transaction id is required", ErrInvalidMutation)
	case m.AccountID == uuid.Nil:
		return fmt.Errorf("%w: account id is required", ErrInvalidMutation)
	case m.Delta == 0:
		return fmt.Errorf("%w: delta must be non-zero", ErrInvalidMutation)
	case m.ExpectedVersion < 0:
		return fmt.Errorf("%w: expected version must be >= 0", ErrInvalidMutation)
	case !m.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMutation, m.Kind)
	}

	return nil
}

// Record is an immutable transaction log entry.
type Record struct {
	TransactionID string
	AccountID     uuid.UUID
	Delta         int64
	Kind          Kind
	Reason        Reason
	Game          string
	Description   string
	BalanceAfter  int64
	VersionAfter  int64
	CreatedAt     time.Time
}

// Snapshot returns the account state right after r committed.
func (r Record) Snapshot() Snapshot {
	return Snapshot{
		AccountID: r.AccountID,
		Balance:   r.BalanceAfter,
		Version:   r.VersionAfter,
		UpdatedAt: r.CreatedAt,
	}
}
