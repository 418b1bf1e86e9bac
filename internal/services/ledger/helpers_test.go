package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fastprodman/casinoledger/internal/balancecache"
	"github.com/fastprodman/casinoledger/internal/config"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/repos/accounts/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testConfig(instance string) Config {
	return Config{
		InstanceID:           instance,
		OpTimeout:            2 * time.Second,
		LockTimeout:          2 * time.Second,
		MaxTransientAttempts: 3,
		BackoffInitial:       time.Millisecond,
		BackoffMax:           5 * time.Millisecond,
		MaxConflictRetries:   4,
		OutboxSize:           64,
	}
}

// faultyStore wraps a real store and lets a test inject failures.
type faultyStore struct {
	accounts.Store

	mu         sync.Mutex
	applyHook  func(m accounts.Mutation) error
	readHook   func(ctx context.Context) error
	getTxHook  func(transactionID string) error
	applyCalls int
	reads      int
}

func (f *faultyStore) setHook(h func(m accounts.Mutation) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyHook = h
}

func (f *faultyStore) setReadHook(h func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readHook = h
}

func (f *faultyStore) setGetTxHook(h func(transactionID string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getTxHook = h
}

func (f *faultyStore) calls() (apply, reads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.applyCalls, f.reads
}

func (f *faultyStore) ApplyTransaction(ctx context.Context, m accounts.Mutation) (accounts.Record, error) {
	f.mu.Lock()
	f.applyCalls++
	hook := f.applyHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(m); err != nil {
			return accounts.Record{}, err
		}
	}
	return f.Store.ApplyTransaction(ctx, m)
}

func (f *faultyStore) GetBalance(ctx context.Context, id uuid.UUID) (accounts.Snapshot, error) {
	f.mu.Lock()
	f.reads++
	hook := f.readHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return accounts.Snapshot{}, err
		}
	}
	return f.Store.GetBalance(ctx, id)
}

func (f *faultyStore) GetTransaction(ctx context.Context, transactionID string) (accounts.Record, error) {
	f.mu.Lock()
	hook := f.getTxHook
	f.mu.Unlock()

	if hook != nil {
		if err := hook(transactionID); err != nil {
			return accounts.Record{}, err
		}
	}
	return f.Store.GetTransaction(ctx, transactionID)
}

func newTestStore(t *testing.T) *faultyStore {
	t.Helper()

	s, err := sqlite.Open(config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return &faultyStore{Store: s}
}

func newTestService(t *testing.T, opts ...Option) (*Service, *faultyStore) {
	t.Helper()

	store := newTestStore(t)
	cache := balancecache.New(balancecache.Options{MaxEntries: 100, TTL: time.Minute})
	return New(store, cache, testConfig("test"), opts...), store
}

func seedAccount(t *testing.T, s *Service, balance int64) uuid.UUID {
	t.Helper()

	id := uuid.New()
	res, err := s.Credit(t.Context(), Request{AccountID: id, Amount: balance, TransactionID: "seed-" + id.String()})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.Version)

	return id
}
