package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
)

// Transfer moves funds between two accounts as a debit leg followed by a
// credit leg, holding both account locks throughout.
//
// If the credit leg fails after the debit committed, the debit is reversed
// with a compensating credit and a *PartialTransferError is returned.
// Replaying a transfer id never moves funds twice, including replays of a
// compensated transfer, which report the same partial failure again.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (res TransferResult, err error) {
	started := time.Now()
	defer func() { s.metrics.Operation("transfer", outcome(err, res.Replayed), started) }()

	if err := req.validate(); err != nil {
		return TransferResult{}, err
	}
	if req.TransactionID == "" {
		req.TransactionID = uuid.NewString()
	}

	var out TransferResult
	err = s.withGate(ctx, []uuid.UUID{req.From, req.To}, func(ctx context.Context) error {
		var err error
		out, err = s.transferLocked(ctx, req)
		return err
	})
	if err != nil {
		return TransferResult{}, fmt.Errorf("transfer %s: %w", req.TransactionID, err)
	}

	return out, nil
}

func (s *Service) transferLocked(ctx context.Context, req TransferRequest) (TransferResult, error) {
	id := req.TransactionID

	out, outReplayed, err := s.commit(ctx, fixedPlan(accounts.Mutation{
		TransactionID: TransferOutID(id),
		AccountID:     req.From,
		Delta:         -req.Amount,
		Kind:          accounts.KindTransferOut,
		Reason:        req.Reason,
		Game:          req.Game,
		Description:   req.Description,
	}))
	if err != nil {
		return TransferResult{}, fmt.Errorf("debit leg: %w", err)
	}

	if outReplayed {
		refund, err := retryTransient(ctx, s, func(ctx context.Context) (accounts.Record, error) {
			return s.store.GetTransaction(ctx, TransferRefundID(id))
		})
		switch {
		case err == nil && (refund.AccountID != req.From || refund.Delta != req.Amount):
			return TransferResult{}, fmt.Errorf("%w: %s", ErrIdempotencyMismatch, TransferRefundID(id))
		case err == nil:
			return TransferResult{}, &PartialTransferError{
				TransactionID: id,
				Cause:         errors.New("transfer was already refunded"),
				Compensated:   true,
			}
		case !errors.Is(err, accounts.ErrTransactionNotFound):
			return TransferResult{}, fmt.Errorf("check refund: %w", abortIfTransient(err))
		}
	}

	in, inReplayed, err := s.commit(ctx, fixedPlan(accounts.Mutation{
		TransactionID: TransferInID(id),
		AccountID:     req.To,
		Delta:         req.Amount,
		Kind:          accounts.KindTransferIn,
		Reason:        req.Reason,
		Game:          req.Game,
		Description:   req.Description,
	}))
	if err != nil {
		return TransferResult{}, s.compensate(ctx, req, err)
	}

	return TransferResult{
		TransactionID: id,
		From:          resultFrom(out, outReplayed),
		To:            resultFrom(in, inReplayed),
		Replayed:      outReplayed && inReplayed,
	}, nil
}

// compensate credits the debited amount back to the source account.
func (s *Service) compensate(ctx context.Context, req TransferRequest, cause error) error {
	_, _, err := s.commit(ctx, fixedPlan(accounts.Mutation{
		TransactionID: TransferRefundID(req.TransactionID),
		AccountID:     req.From,
		Delta:         req.Amount,
		Kind:          accounts.KindCredit,
		Reason:        accounts.ReasonRefund,
		Game:          req.Game,
		Description:   "refund of failed transfer " + req.TransactionID,
	}))
	s.metrics.Compensation(err == nil)

	if err != nil {
		s.logger.Error("transfer compensation failed, funds are stranded",
			"transaction_id", req.TransactionID,
			"account_id", req.From,
			"amount", req.Amount,
			"cause", cause,
			"error", err,
		)
		return &PartialTransferError{TransactionID: req.TransactionID, Cause: cause, CompensationErr: err}
	}

	s.logger.Warn("transfer credit leg failed, debit refunded",
		"transaction_id", req.TransactionID,
		"account_id", req.From,
		"error", cause,
	)
	return &PartialTransferError{TransactionID: req.TransactionID, Cause: cause, Compensated: true}
}
