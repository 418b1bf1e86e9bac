package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 1000
)

// Request is a single-account credit or debit. Amount is a positive count
// of minor units. An empty TransactionID is generated.
type Request struct {
	AccountID     uuid.UUID
	Amount        int64
	TransactionID string
	Reason        accounts.Reason
	Game          string
	Description   string
}

func (r Request) validate() error {
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account id is required", ErrInvalidRequest)
	}
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidRequest, r.Amount)
	}
	if err := checkTransactionID(r.TransactionID); err != nil {
		return err
	}
	if _, err := accounts.ParseReason(string(r.Reason)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// Result is the committed (or replayed) outcome of one mutation.
type Result struct {
	TransactionID string
	AccountID     uuid.UUID
	Delta         int64
	Balance       int64
	Version       int64
	CreatedAt     time.Time
	Replayed      bool // the transaction id was already committed
}

func resultFrom(rec accounts.Record, replayed bool) Result {
	return Result{
		TransactionID: rec.TransactionID,
		AccountID:     rec.AccountID,
		Delta:         rec.Delta,
		Balance:       rec.BalanceAfter,
		Version:       rec.VersionAfter,
		CreatedAt:     rec.CreatedAt,
		Replayed:      replayed,
	}
}

type TransferRequest struct {
	From          uuid.UUID
	To            uuid.UUID
	Amount        int64
	TransactionID string
	Reason        accounts.Reason
	Game          string
	Description   string
}

func (r TransferRequest) validate() error {
	switch {
	case r.From == uuid.Nil || r.To == uuid.Nil:
		return fmt.Errorf("%w: both accounts are required", ErrInvalidRequest)
	case r.From == r.To:
		return fmt.Errorf("%w: cannot transfer to the same account", ErrInvalidRequest)
	case r.Amount <= 0:
		return fmt.Errorf("%w: amount must be positive, got %d", ErrInvalidRequest, r.Amount)
	}
	if err := checkTransactionID(r.TransactionID); err != nil {
		return err
	}
	if _, err := accounts.ParseReason(string(r.Reason)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// TransferResult carries both legs. Replayed is set when the whole
// transfer had already been committed.
type TransferResult struct {
	TransactionID string
	From          Result
	To            Result
	Replayed      bool
}

// legSeparator joins a transfer id and its leg suffix. Caller supplied ids
// may not contain it, so no caller id can collide with a leg id.
const legSeparator = ":"

func checkTransactionID(id string) error {
	if strings.Contains(id, legSeparator) {
		return fmt.Errorf("%w: transaction id must not contain %q", ErrInvalidRequest, legSeparator)
	}
	return nil
}

// Leg ids derived from a transfer id.
func TransferOutID(id string) string    { return id + legSeparator + "out" }
func TransferInID(id string) string     { return id + legSeparator + "in" }
func TransferRefundID(id string) string { return id + legSeparator + "refund" }

// SetBalanceRequest overwrites an account's balance with an administrative
// credit or debit of the difference.
type SetBalanceRequest struct {
	AccountID     uuid.UUID
	Balance       int64
	TransactionID string
	Description   string
}

func (r SetBalanceRequest) validate() error {
	if r.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account id is required", ErrInvalidRequest)
	}
	if r.Balance < 0 {
		return fmt.Errorf("%w: balance must be >= 0, got %d", ErrInvalidRequest, r.Balance)
	}
	return checkTransactionID(r.TransactionID)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
