package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/casinoledger/internal/app"
	"github.com/fastprodman/casinoledger/internal/balancecache"
	"github.com/fastprodman/casinoledger/internal/config"
	"github.com/fastprodman/casinoledger/internal/infra/logging"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/fastprodman/casinoledger/internal/services/ledger"
	"github.com/fastprodman/casinoledger/pkg/envconf"
	"github.com/google/uuid"
)

type migratorConfig struct {
	config.Config

	AppEnv string `env:"APP_ENV"`
}

// Demo accounts credited when APP_ENV=DEV. Fixed transaction ids make
// repeated runs replay instead of crediting twice.
var devSeed = []struct {
	id     uuid.UUID
	amount int64
}{
	{uuid.MustParse("00000000-0000-0000-0000-000000000001"), 100_000},
	{uuid.MustParse("00000000-0000-0000-0000-000000000002"), 50_000},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := migrateAll(ctx)
	if err != nil {
		slog.Error("migration run failed", "error", err)
		//nolint:gocritic
		os.Exit(1)
	}

	slog.Info("migration run finished successfully")
}

func migrateAll(ctx context.Context) error {
	cfg := new(migratorConfig)

	err := envconf.Load(cfg, ".env")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logging.SetupJSON(cfg.LogLevel)

	// Opening a store applies its embedded migrations.
	store, err := app.OpenStore(ctx, cfg.Config)
	if err != nil {
		return err
	}
	//nolint:errcheck
	defer store.Close()

	slog.Info("base migrations applied", "store", cfg.Store.Backend)

	if cfg.AppEnv == "DEV" {
		err = seed(ctx, store)
		if err != nil {
			return fmt.Errorf("dev seed failed: %w", err)
		}

		slog.Info("dev seed applied", "accounts", len(devSeed))
	}

	return nil
}

func seed(ctx context.Context, store accounts.Store) error {
	cache := balancecache.New(balancecache.Options{MaxEntries: len(devSeed)})
	svc := ledger.New(store, cache, ledger.DefaultConfig())

	for i, s := range devSeed {
		_, err := svc.Credit(ctx, ledger.Request{
			AccountID:     s.id,
			Amount:        s.amount,
			TransactionID: fmt.Sprintf("dev-seed-%d", i+1),
			Reason:        accounts.ReasonDeposit,
			Description:   "dev seed",
		})
		if err != nil {
			return fmt.Errorf("seed %s: %w", s.id, err)
		}
	}

	return nil
}
