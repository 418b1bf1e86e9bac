package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
)

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrTransactionAborted  = errors.New("transaction aborted")
	ErrIdempotencyMismatch = errors.New("transaction id reused with different parameters")

	// Re-exported so callers need not import the store package.
	ErrInsufficientFunds = accounts.ErrInsufficientFunds
	ErrAccountNotFound   = accounts.ErrAccountNotFound
)

// PartialTransferError reports a transfer whose debit leg committed but
// whose credit leg did not.
type PartialTransferError struct {
	TransactionID   string
	Cause           error // why the credit leg failed
	Compensated     bool  // the debited amount was credited back
	CompensationErr error
}

func (e *PartialTransferError) Error() string {
	switch {
	case e.Compensated:
		return fmt.Sprintf("transfer %s failed after debit, refunded: %v", e.TransactionID, e.Cause)
	case e.CompensationErr != nil:
		return fmt.Sprintf("transfer %s failed after debit, refund failed: %v (refund: %v)",
			e.TransactionID, e.Cause, e.CompensationErr)
	default:
		return fmt.Sprintf("transfer %s failed after debit: %v", e.TransactionID, e.Cause)
	}
}

func (e *PartialTransferError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.CompensationErr != nil {
		errs = append(errs, e.CompensationErr)
	}
	return errs
}

type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindTransient
	KindConflict
	KindInsufficientFunds
	KindDuplicate
	KindPartialTransfer
	KindAborted
	KindNotFound
	KindInvalid
	KindIdempotencyMismatch
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindInsufficientFunds:
		return "insufficient_funds"
	case KindDuplicate:
		return "duplicate"
	case KindPartialTransfer:
		return "partial_transfer"
	case KindAborted:
		return "aborted"
	case KindNotFound:
		return "not_found"
	case KindInvalid:
		return "invalid"
	case KindIdempotencyMismatch:
		return "idempotency_mismatch"
	default:
		return "internal"
	}
}

// KindOf classifies err. The order matters: a partial transfer or an
// aborted transaction may wrap a transient cause.
func KindOf(err error) ErrorKind {
	var partial *PartialTransferError

	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &partial):
		return KindPartialTransfer
	case errors.Is(err, ErrTransactionAborted):
		return KindAborted
	case errors.Is(err, ErrIdempotencyMismatch):
		return KindIdempotencyMismatch
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, accounts.ErrInvalidMutation):
		return KindInvalid
	case errors.Is(err, accounts.ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, accounts.ErrAccountNotFound), errors.Is(err, accounts.ErrTransactionNotFound):
		return KindNotFound
	case errors.Is(err, accounts.ErrDuplicateTransaction):
		return KindDuplicate
	case errors.Is(err, accounts.ErrConflict):
		return KindConflict
	case accounts.IsTransient(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransient
	default:
		return KindInternal
	}
}

// IsInformational reports failures that are a normal business answer
// rather than a fault, i.e. insufficient funds.
func IsInformational(err error) bool {
	return KindOf(err) == KindInsufficientFunds
}
