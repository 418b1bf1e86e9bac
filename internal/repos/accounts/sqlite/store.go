// Package sqlite is the embedded, single-file accounts.Store backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/fastprodman/casinoledger/internal/config"
	"github.com/fastprodman/casinoledger/internal/infra/dbmigrate"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/repos/accounts/sqlite/migrations"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

var _ accounts.Store = (*Store)(nil)

// Store persists balances and the transaction log in one SQLite file.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) the database file and applies migrations.
func Open(cfg config.SQLiteConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	dsn := "file:" + filepath.Clean(cfg.Path) + "?" + q.Encode()

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// One writer at a time; the version check does the rest.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := dbmigrate.SQLite(sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// DB exposes the handle for maintenance tooling.
func (s *Store) DB() *sql.DB {
	return s.sqlDB
}

func (s *Store) GetBalance(ctx context.Context, accountID uuid.UUID) (accounts.Snapshot, error) {
	snap := accounts.Snapshot{AccountID: accountID}
	var updated int64

	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT balance, version, updated_at FROM accounts WHERE id = ?`,
		accountID.String(),
	).Scan(&snap.Balance, &snap.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return accounts.Snapshot{}, accounts.ErrAccountNotFound
	}
	if err != nil {
		return accounts.Snapshot{}, classify(fmt.Errorf("get balance: %w", err))
	}

	snap.UpdatedAt = fromMillis(updated)
	return snap, nil
}
