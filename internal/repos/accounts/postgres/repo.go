package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/casinoledger/internal/config"
	"github.com/fastprodman/casinoledger/internal/infra/dbmigrate"
	"github.com/fastprodman/casinoledger/internal/infra/pgutils"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/repos/accounts/postgres/migrations"
)

var _ accounts.Store = (*accountsRepo)(nil)

type accountsRepo struct{ db *sql.DB }

// New wraps an already migrated database.
func New(db *sql.DB) *accountsRepo {
	return &accountsRepo{db: db}
}

// Open connects with the configured pool, applies migrations and returns
// a ready store. The store owns the pool and closes it on Close.
func Open(ctx context.Context, cfg config.PostgresConfig) (*accountsRepo, error) {
	db, err := pgutils.OpenDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	err = Migrate(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return New(db), nil
}

// Migrate applies the embedded schema.
func Migrate(db *sql.DB) error {
	err := dbmigrate.Postgres(db, migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}

	return nil
}

func (r *accountsRepo) Close() error {
	return r.db.Close()
}
