package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/fastprodman/casinoledger/internal/balancecache"
	"github.com/fastprodman/casinoledger/internal/config"
	"github.com/fastprodman/casinoledger/internal/repos/accounts/sqlite"
	"github.com/fastprodman/casinoledger/internal/services/ledger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOpener(t *testing.T) Opener {
	t.Helper()

	store, err := sqlite.Open(config.SQLiteConfig{
		Path:        filepath.Join(t.TempDir(), "cli.db"),
		BusyTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cache := balancecache.New(balancecache.Options{MaxEntries: 100, TTL: time.Minute})
	svc := ledger.New(store, cache, ledger.DefaultConfig())

	return func(context.Context, *RootOptions) (Ledger, int32, func() error, error) {
		return svc, 2, func() error { return nil }, nil
	}
}

func execute(t *testing.T, open Opener, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestCreditDebitBalance(t *testing.T) {
	open := testOpener(t)
	acc := uuid.NewString()

	out, err := execute(t, open, "credit", acc, "20", "--tx", "dep-1", "--reason", "deposit")
	require.NoError(t, err)
	assert.Contains(t, out, "balance=20.00 version=1")

	out, err = execute(t, open, "credit", acc, "20", "--tx", "dep-1", "--reason", "deposit")
	require.NoError(t, err)
	assert.Contains(t, out, "(replayed)")

	_, err = execute(t, open, "debit", acc, "2.5", "--reason", "bet", "--game", "slots")
	require.NoError(t, err)

	out, err = execute(t, open, "--format", "json", "balance", acc)
	require.NoError(t, err)

	var snap snapshotView
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, "17.50", snap.Balance)
	assert.Equal(t, int64(2), snap.Version)
}

func TestDebitInsufficientFunds(t *testing.T) {
	open := testOpener(t)
	acc := uuid.NewString()

	_, err := execute(t, open, "credit", acc, "1")
	require.NoError(t, err)

	_, err = execute(t, open, "debit", acc, "5")
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, 3, exitCode(err))
}

func TestInvalidInput(t *testing.T) {
	open := testOpener(t)
	acc := uuid.NewString()

	tests := []struct {
		name string
		args []string
	}{
		{"bad account", []string{"balance", "nope"}},
		{"bad amount", []string{"credit", acc, "1.234"}},
		{"zero amount", []string{"debit", acc, "0"}},
		{"bad reason", []string{"credit", acc, "1", "--reason", "gift"}},
		{"history needs a target", []string{"history"}},
		{"prune needs age", []string{"prune"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, open, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ledger.KindInvalid, ledger.KindOf(err))
			assert.Equal(t, 2, exitCode(err))
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, testOpener(t), "--format", "xml", "top")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestTransferHistoryTop(t *testing.T) {
	open := testOpener(t)
	from, to := uuid.NewString(), uuid.NewString()

	_, err := execute(t, open, "credit", from, "10")
	require.NoError(t, err)

	out, err := execute(t, open, "transfer", from, to, "3", "--tx", "tr-1", "--game", "poker", "--reason", "win")
	require.NoError(t, err)
	assert.Contains(t, out, "from_balance=7.00 to_balance=3.00")

	out, err = execute(t, open, "--format", "json", "history", "--game", "poker")
	require.NoError(t, err)
	var recs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &recs))
	assert.Len(t, recs, 2)

	out, err = execute(t, open, "history", from, "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "tr-1:out")

	out, err = execute(t, open, "--format", "json", "top", "--limit", "1")
	require.NoError(t, err)
	var top []snapshotView
	require.NoError(t, json.Unmarshal([]byte(out), &top))
	require.Len(t, top, 1)
	assert.Equal(t, from, top[0].AccountID)
}

func TestSetAndPrune(t *testing.T) {
	open := testOpener(t)
	acc := uuid.NewString()

	out, err := execute(t, open, "set", acc, "42", "--tx", "adm-1")
	require.NoError(t, err)
	assert.Contains(t, out, "balance=42.00")

	out, err = execute(t, open, "prune", "--older-than", "1h")
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 0 records")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 3, exitCode(ledger.ErrIdempotencyMismatch))
	assert.Equal(t, 2, exitCode(ledger.ErrAccountNotFound))
	assert.Equal(t, 1, exitCode(ledger.ErrTransactionAborted))
}
