package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	transient := fmt.Errorf("%w: reset", accounts.ErrTransient)

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindNone},
		{"insufficient", fmt.Errorf("debit: %w", accounts.ErrInsufficientFunds), KindInsufficientFunds},
		{"not_found", accounts.ErrAccountNotFound, KindNotFound},
		{"invalid", fmt.Errorf("%w: x", ErrInvalidRequest), KindInvalid},
		{"invalid_mutation", accounts.ErrInvalidMutation, KindInvalid},
		{"mismatch", ErrIdempotencyMismatch, KindIdempotencyMismatch},
		{"conflict", accounts.ErrConflict, KindConflict},
		{"duplicate", accounts.ErrDuplicateTransaction, KindDuplicate},
		{"transient", transient, KindTransient},
		{"deadline", context.DeadlineExceeded, KindTransient},
		{"aborted_over_transient", fmt.Errorf("%w: %w", ErrTransactionAborted, transient), KindAborted},
		{"partial_over_aborted", fmt.Errorf("transfer: %w", &PartialTransferError{
			TransactionID: "t", Cause: ErrTransactionAborted, Compensated: true,
		}), KindPartialTransfer},
		{"other", errors.New("boom"), KindInternal},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsInformational(t *testing.T) {
	t.Parallel()

	assert.True(t, IsInformational(fmt.Errorf("x: %w", ErrInsufficientFunds)))
	assert.False(t, IsInformational(ErrTransactionAborted))
	assert.False(t, IsInformational(nil))
}

func TestPartialTransferError(t *testing.T) {
	t.Parallel()

	cause := errors.New("credit failed")
	refund := errors.New("refund failed")

	e := &PartialTransferError{TransactionID: "t9", Cause: cause, CompensationErr: refund}
	assert.ErrorIs(t, e, cause)
	assert.ErrorIs(t, e, refund)
	assert.Contains(t, e.Error(), "refund failed")

	e = &PartialTransferError{TransactionID: "t9", Cause: cause, Compensated: true}
	assert.Contains(t, e.Error(), "refunded")
	assert.Equal(t, "insufficient_funds", KindInsufficientFunds.String())
}
