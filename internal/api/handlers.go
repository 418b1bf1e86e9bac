package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/casinoledger/internal/money"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/services/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Ledger is the part of the engine the HTTP API needs.
type Ledger interface {
	Snapshot(ctx context.Context, id uuid.UUID) (accounts.Snapshot, error)
	Credit(ctx context.Context, req ledger.Request) (ledger.Result, error)
	Debit(ctx context.Context, req ledger.Request) (ledger.Result, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (ledger.TransferResult, error)
	SetBalance(ctx context.Context, req ledger.SetBalanceRequest) (ledger.Result, error)
	History(ctx context.Context, id uuid.UUID, limit int) ([]accounts.Record, error)
	HistoryByGame(ctx context.Context, game string, limit int) ([]accounts.Record, error)
	Leaderboard(ctx context.Context, limit int) ([]accounts.Snapshot, error)
}

// HandlerProvider wraps the ledger and exposes HTTP handlers.
type HandlerProvider struct {
	svc      Ledger
	decimals int32
}

func NewHandler(svc Ledger, decimals int32) *HandlerProvider {
	return &HandlerProvider{svc: svc, decimals: decimals}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

type errorResponse struct {
	Error       string `json:"error"`
	Kind        string `json:"kind,omitempty"`
	Compensated *bool  `json:"compensated,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: ledger.KindInvalid.String()})
}

// writeLedgerError maps engine failures onto status codes.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ledger.KindOf(err)
	resp := errorResponse{Error: err.Error(), Kind: kind.String()}

	var status int
	switch kind {
	case ledger.KindInsufficientFunds:
		status = http.StatusConflict
		resp.Error = "insufficient funds"
	case ledger.KindConflict, ledger.KindDuplicate:
		status = http.StatusConflict
	case ledger.KindNotFound:
		status = http.StatusNotFound
	case ledger.KindInvalid:
		status = http.StatusBadRequest
	case ledger.KindIdempotencyMismatch:
		status = http.StatusUnprocessableEntity
	case ledger.KindPartialTransfer:
		status = http.StatusBadGateway
		var partial *ledger.PartialTransferError
		if errors.As(err, &partial) {
			resp.Compensated = &partial.Compensated
		}
	case ledger.KindAborted, ledger.KindTransient:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
		resp.Error = "internal error"
	}

	if status >= http.StatusInternalServerError {
		slog.Error("ledger request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind.String(),
			"error", err,
		)
	}

	writeJSON(w, status, resp)
}

func parseAccountID(r *http.Request, param string) (uuid.UUID, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("missing %s", param)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %w", param, err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid %s: nil uuid", param)
	}

	return id, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return n, nil
}

// decodeBody limits the body size and rejects unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if errors.Is(err, io.EOF) {
		return errors.New("empty body")
	}
	if err != nil {
		return errors.New("invalid JSON")
	}

	return nil
}

// --- Wire types ---

type mutationRequest struct {
	Amount        string `json:"amount"`
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason"`
	Game          string `json:"game"`
	Description   string `json:"description"`
}

type setBalanceRequest struct {
	Balance       string `json:"balance"`
	TransactionID string `json:"transactionId"`
	Description   string `json:"description"`
}

type transferRequest struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Amount        string `json:"amount"`
	TransactionID string `json:"transactionId"`
	Reason        string `json:"reason"`
	Game          string `json:"game"`
	Description   string `json:"description"`
}

type balanceResponse struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	Version   int64  `json:"version"`
}

type resultResponse struct {
	TransactionID string `json:"transactionId"`
	AccountID     string `json:"accountId"`
	Delta         string `json:"delta,omitempty"`
	Balance       string `json:"balance"`
	Version       int64  `json:"version"`
	Replayed      bool   `json:"replayed"`
}

type transferResponse struct {
	TransactionID string         `json:"transactionId"`
	From          resultResponse `json:"from"`
	To            resultResponse `json:"to"`
	Replayed      bool           `json:"replayed"`
}

type recordResponse struct {
	TransactionID string    `json:"transactionId"`
	AccountID     string    `json:"accountId"`
	Delta         string    `json:"delta"`
	Kind          string    `json:"kind"`
	Reason        string    `json:"reason,omitempty"`
	Game          string    `json:"game,omitempty"`
	Description   string    `json:"description,omitempty"`
	BalanceAfter  string    `json:"balanceAfter"`
	VersionAfter  int64     `json:"versionAfter"`
	CreatedAt     time.Time `json:"createdAt"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func (h *HandlerProvider) result(res ledger.Result) resultResponse {
	out := resultResponse{
		TransactionID: res.TransactionID,
		AccountID:     res.AccountID.String(),
		Balance:       money.Format(res.Balance, h.decimals),
		Version:       res.Version,
		Replayed:      res.Replayed,
	}
	if res.Delta != 0 {
		out.Delta = money.Format(res.Delta, h.decimals)
	}
	return out
}

func (h *HandlerProvider) records(recs []accounts.Record) listResponse[recordResponse] {
	items := make([]recordResponse, 0, len(recs))
	for _, rec := range recs {
		items = append(items, recordResponse{
			TransactionID: rec.TransactionID,
			AccountID:     rec.AccountID.String(),
			Delta:         money.Format(rec.Delta, h.decimals),
			Kind:          string(rec.Kind),
			Reason:        string(rec.Reason),
			Game:          rec.Game,
			Description:   rec.Description,
			BalanceAfter:  money.Format(rec.BalanceAfter, h.decimals),
			VersionAfter:  rec.VersionAfter,
			CreatedAt:     rec.CreatedAt,
		})
	}
	return listResponse[recordResponse]{Items: items}
}

// --- Handlers ---

// GetBalanceHandler handles GET /accounts/{accountId}/balance
func (h *HandlerProvider) GetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r, "accountId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.svc.Snapshot(r.Context(), id)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		AccountID: id.String(),
		Balance:   money.Format(snap.Balance, h.decimals),
		Version:   snap.Version,
	})
}

// CreditHandler handles POST /accounts/{accountId}/credit
func (h *HandlerProvider) CreditHandler(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Credit)
}

// DebitHandler handles POST /accounts/{accountId}/debit
func (h *HandlerProvider) DebitHandler(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.svc.Debit)
}

func (h *HandlerProvider) mutate(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, ledger.Request) (ledger.Result, error),
) {
	id, err := parseAccountID(r, "accountId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body mutationRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := money.ParsePositive(body.Amount, h.decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reason, err := accounts.ParseReason(body.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := apply(r.Context(), ledger.Request{
		AccountID:     id,
		Amount:        amount,
		TransactionID: body.TransactionID,
		Reason:        reason,
		Game:          body.Game,
		Description:   body.Description,
	})
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.result(res))
}

// SetBalanceHandler handles PUT /accounts/{accountId}/balance
func (h *HandlerProvider) SetBalanceHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r, "accountId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var body setBalanceRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	balance, err := money.Parse(body.Balance, h.decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.SetBalance(r.Context(), ledger.SetBalanceRequest{
		AccountID:     id,
		Balance:       balance,
		TransactionID: body.TransactionID,
		Description:   body.Description,
	})
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.result(res))
}

// TransferHandler handles POST /transfers
func (h *HandlerProvider) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var body transferRequest
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	from, err := uuid.Parse(body.From)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from account")
		return
	}
	to, err := uuid.Parse(body.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to account")
		return
	}
	amount, err := money.ParsePositive(body.Amount, h.decimals)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reason, err := accounts.ParseReason(body.Reason)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Transfer(r.Context(), ledger.TransferRequest{
		From:          from,
		To:            to,
		Amount:        amount,
		TransactionID: body.TransactionID,
		Reason:        reason,
		Game:          body.Game,
		Description:   body.Description,
	})
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse{
		TransactionID: res.TransactionID,
		From:          h.result(res.From),
		To:            h.result(res.To),
		Replayed:      res.Replayed,
	})
}

// AccountTransactionsHandler handles GET /accounts/{accountId}/transactions
func (h *HandlerProvider) AccountTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseAccountID(r, "accountId")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.svc.History(r.Context(), id, limit)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.records(recs))
}

// GameTransactionsHandler handles GET /games/{game}/transactions
func (h *HandlerProvider) GameTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.svc.HistoryByGame(r.Context(), chi.URLParam(r, "game"), limit)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.records(recs))
}

// LeaderboardHandler handles GET /leaderboard
func (h *HandlerProvider) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	top, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		writeLedgerError(w, r, err)
		return
	}

	items := make([]balanceResponse, 0, len(top))
	for _, s := range top {
		items = append(items, balanceResponse{
			AccountID: s.AccountID.String(),
			Balance:   money.Format(s.Balance, h.decimals),
			Version:   s.Version,
		})
	}

	writeJSON(w, http.StatusOK, listResponse[balanceResponse]{Items: items})
}
