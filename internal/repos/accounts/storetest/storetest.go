// Package storetest is the behavioural contract every accounts.Store adapter
// must satisfy. Adapter packages call Run from their own tests.
package storetest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store. It is called once per subtest;
// cleanup belongs to t.
type Factory func(t *testing.T) accounts.Store

// Run executes the full contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s accounts.Store)
	}{
		{"get_balance_missing", testGetBalanceMissing},
		{"create_on_first_credit", testCreateOnFirstCredit},
		{"version_conflict", testVersionConflict},
		{"create_requires_version_zero", testCreateRequiresVersionZero},
		{"insufficient_funds_leaves_state", testInsufficientFunds},
		{"debit_missing_account", testDebitMissingAccount},
		{"duplicate_checked_before_version", testDuplicateBeforeVersion},
		{"invalid_mutation", testInvalidMutation},
		{"get_transaction", testGetTransaction},
		{"history_newest_first", testHistory},
		{"history_by_game", testHistoryByGame},
		{"top_balances", testTopBalances},
		{"prune_before", testPruneBefore},
		{"concurrent_cas_single_winner", testConcurrentCAS},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func credit(id uuid.UUID, txid string, amount, expected int64) accounts.Mutation {
	return accounts.Mutation{
		TransactionID:   txid,
		AccountID:       id,
		Delta:           amount,
		ExpectedVersion: expected,
		Kind:            accounts.KindCredit,
	}
}

func debit(id uuid.UUID, txid string, amount, expected int64) accounts.Mutation {
	return accounts.Mutation{
		TransactionID:   txid,
		AccountID:       id,
		Delta:           -amount,
		ExpectedVersion: expected,
		Kind:            accounts.KindDebit,
	}
}

// seed creates id with balance and returns the resulting version (1).
func seed(t *testing.T, s accounts.Store, id uuid.UUID, balance int64) int64 {
	t.Helper()

	rec, err := s.ApplyTransaction(t.Context(), credit(id, "seed-"+id.String(), balance, 0))
	require.NoError(t, err)

	return rec.VersionAfter
}

func testGetBalanceMissing(t *testing.T, s accounts.Store) {
	_, err := s.GetBalance(t.Context(), uuid.New())
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func testCreateOnFirstCredit(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()

	rec, err := s.ApplyTransaction(ctx, credit(id, "c1", 100, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(100), rec.BalanceAfter)
	assert.Equal(t, int64(1), rec.VersionAfter)

	snap, err := s.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, snap.AccountID)
	assert.Equal(t, int64(100), snap.Balance)
	assert.Equal(t, int64(1), snap.Version)

	rec, err = s.ApplyTransaction(ctx, debit(id, "d1", 30, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(70), rec.BalanceAfter)
	assert.Equal(t, int64(2), rec.VersionAfter)
}

func testVersionConflict(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()
	v := seed(t, s, id, 100)

	_, err := s.ApplyTransaction(ctx, debit(id, "stale", 10, v+5))
	require.ErrorIs(t, err, accounts.ErrConflict)

	_, err = s.GetTransaction(ctx, "stale")
	require.ErrorIs(t, err, accounts.ErrTransactionNotFound)

	snap, err := s.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), snap.Balance)
	assert.Equal(t, v, snap.Version)
}

func testCreateRequiresVersionZero(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()

	_, err := s.ApplyTransaction(ctx, credit(id, "c1", 10, 1))
	require.ErrorIs(t, err, accounts.ErrConflict)

	seed(t, s, id, 10)

	_, err = s.ApplyTransaction(ctx, credit(id, "c2", 10, 0))
	require.ErrorIs(t, err, accounts.ErrConflict)
}

func testInsufficientFunds(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()
	v := seed(t, s, id, 70)

	_, err := s.ApplyTransaction(ctx, debit(id, "tx2", 100, v))
	require.ErrorIs(t, err, accounts.ErrInsufficientFunds)

	snap, err := s.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(70), snap.Balance)
	assert.Equal(t, v, snap.Version)

	n, err := s.CountTransactions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func testDebitMissingAccount(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()

	_, err := s.ApplyTransaction(ctx, debit(id, "d1", 1, 0))
	require.ErrorIs(t, err, accounts.ErrInsufficientFunds)

	_, err = s.GetBalance(ctx, id)
	require.ErrorIs(t, err, accounts.ErrAccountNotFound)
}

func testDuplicateBeforeVersion(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()
	v := seed(t, s, id, 100)

	_, err := s.ApplyTransaction(ctx, debit(id, "tx1", 30, v))
	require.NoError(t, err)

	// replay with the old expected version and with the current one
	_, err = s.ApplyTransaction(ctx, debit(id, "tx1", 30, v))
	require.ErrorIs(t, err, accounts.ErrDuplicateTransaction)
	_, err = s.ApplyTransaction(ctx, debit(id, "tx1", 30, v+1))
	require.ErrorIs(t, err, accounts.ErrDuplicateTransaction)

	snap, err := s.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(70), snap.Balance)
	assert.Equal(t, v+1, snap.Version)
}

func testInvalidMutation(t *testing.T, s accounts.Store) {
	ctx := t.Context()

	tests := []struct {
		name string
		m    accounts.Mutation
	}{
		{"no_txid", credit(uuid.New(), "", 1, 0)},
		{"nil_account", credit(uuid.Nil, "x", 1, 0)},
		{"zero_delta", credit(uuid.New(), "x", 0, 0)},
		{"bad_kind", accounts.Mutation{TransactionID: "x", AccountID: uuid.New(), Delta: 1, Kind: "gift"}},
	}

	for _, tt := range tests {
		_, err := s.ApplyTransaction(ctx, tt.m)
		require.ErrorIs(t, err, accounts.ErrInvalidMutation, tt.name)
	}
}

func testGetTransaction(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()

	want, err := s.ApplyTransaction(ctx, accounts.Mutation{
		TransactionID: "win-1",
		AccountID:     id,
		Delta:         250,
		Kind:          accounts.KindCredit,
		Reason:        accounts.ReasonWin,
		Game:          "taixiu",
		Description:   "round 42",
	})
	require.NoError(t, err)

	got, err := s.GetTransaction(ctx, "win-1")
	require.NoError(t, err)
	assert.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
	got.CreatedAt = want.CreatedAt
	assert.Equal(t, want, got)

	_, err = s.GetTransaction(ctx, "nope")
	require.ErrorIs(t, err, accounts.ErrTransactionNotFound)
}

func testHistory(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()
	other := uuid.New()
	seed(t, s, other, 5)

	v := int64(0)
	for i := 1; i <= 5; i++ {
		rec, err := s.ApplyTransaction(ctx, credit(id, fmt.Sprintf("h%d", i), int64(i), v))
		require.NoError(t, err)
		v = rec.VersionAfter
	}

	recs, err := s.History(ctx, id, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "h5", recs[0].TransactionID)
	assert.Equal(t, "h4", recs[1].TransactionID)
	assert.Equal(t, "h3", recs[2].TransactionID)

	n, err := s.CountTransactions(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	recs, err = s.History(ctx, uuid.New(), 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func testHistoryByGame(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	a, b := uuid.New(), uuid.New()

	m := credit(a, "g1", 10, 0)
	m.Game = "roulette"
	_, err := s.ApplyTransaction(ctx, m)
	require.NoError(t, err)

	m = credit(b, "g2", 10, 0)
	m.Game = "roulette"
	_, err = s.ApplyTransaction(ctx, m)
	require.NoError(t, err)

	m = credit(b, "g3", 10, 1)
	m.Game = "slots"
	_, err = s.ApplyTransaction(ctx, m)
	require.NoError(t, err)

	recs, err := s.HistoryByGame(ctx, "roulette", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, "roulette", r.Game)
	}
}

func testTopBalances(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	seed(t, s, ids[0], 50)
	seed(t, s, ids[1], 500)
	seed(t, s, ids[2], 5)

	top, err := s.TopBalances(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, ids[1], top[0].AccountID)
	assert.Equal(t, int64(500), top[0].Balance)
	assert.Equal(t, ids[0], top[1].AccountID)
}

func testPruneBefore(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()
	v := seed(t, s, id, 10)
	_, err := s.ApplyTransaction(ctx, credit(id, "p1", 10, v))
	require.NoError(t, err)

	n, err := s.PruneBefore(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = s.PruneBefore(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// balances survive pruning
	snap, err := s.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(20), snap.Balance)
	assert.Equal(t, int64(2), snap.Version)
}

func testConcurrentCAS(t *testing.T, s accounts.Store) {
	ctx := t.Context()
	id := uuid.New()
	v := seed(t, s, id, 1000)

	const writers = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := s.ApplyTransaction(ctx, debit(id, fmt.Sprintf("race-%d", i), 10, v))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case accounts.IsPermanent(err) || accounts.IsTransient(err):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflict)

	snap, err := s.GetBalance(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(990), snap.Balance)
	assert.Equal(t, v+1, snap.Version)
}
